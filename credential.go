package bili

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// bilibiliOrigin is the cookie-jar scope every credential is read from and
// written to, mirroring the Rust original's single "https://bilibili.com"
// jar domain.
var bilibiliOrigin = mustParseURL("https://bilibili.com")

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// Credential is the immutable triple required to act as a logged-in user:
// the uid, the session token, and the CSRF token. All three are non-empty
// whenever a Credential was constructed successfully.
type Credential struct {
	UID   string
	Token string
	CSRF  string
}

// Jar is the cookie store jointly owned by the Credential Store and the API
// Client. It wraps the stdlib jar so the whole
// package can share one concrete type instead of every caller re-deriving
// cookie strings by hand.
type Jar struct {
	*cookiejar.Jar
}

// NewJar returns an empty cookie jar scoped to the Bilibili origin.
func NewJar() (*Jar, error) {
	j, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Jar{Jar: j}, nil
}

// cookieHeader renders the jar's current cookies for the Bilibili origin as
// a single "Name=Value; Name2=Value2" header string — what every outgoing
// request's Cookie header needs.
func (j *Jar) cookieHeader() string {
	cookies := j.Cookies(bilibiliOrigin)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// captureSetCookies records a response's Set-Cookie headers into the jar
// (so future requests carry them) and returns the raw header lines, for
// persistence callers that want to save them verbatim (the CLI's cookie
// file).
func (j *Jar) captureSetCookies(resp *http.Response) []string {
	raw := resp.Header.Values("Set-Cookie")
	if len(raw) == 0 {
		return nil
	}
	j.SetCookies(bilibiliOrigin, resp.Cookies())
	out := make([]string, len(raw))
	copy(out, raw)
	return out
}

// FromRawCookies parses a list of raw "Name=Value; Path=/; ..." cookie
// header lines (as persisted by the CLI's token file, or captured from a
// login poll's Set-Cookie headers) into a fresh jar, then derives a
// Credential from it.
func FromRawCookies(lines []string) (*Credential, *Jar, error) {
	jar, err := NewJar()
	if err != nil {
		return nil, nil, err
	}

	var cookies []*http.Cookie
	for _, line := range lines {
		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, ok := strings.Cut(part, "=")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			// Skip cookie attributes (Path, Domain, Expires, ...) — only
			// Name=Value pairs from the leading cookie-name set matter here.
			if isCookieAttribute(name) {
				continue
			}
			cookies = append(cookies, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
		}
	}
	jar.SetCookies(bilibiliOrigin, cookies)

	cred, err := FromJar(jar)
	if err != nil {
		return nil, nil, err
	}
	return cred, jar, nil
}

func isCookieAttribute(name string) bool {
	switch strings.ToLower(name) {
	case "path", "domain", "expires", "max-age", "secure", "httponly", "samesite":
		return true
	default:
		return false
	}
}

// FromJar scans a cookie jar's entries for the Bilibili origin, extracting
// the three required cookie names. It returns ErrEmptyCookie if the jar
// holds nothing for that origin, or ErrIllegalCookie if any of the three
// required values is missing or empty.
func FromJar(jar *Jar) (*Credential, error) {
	cookies := jar.Cookies(bilibiliOrigin)
	if len(cookies) == 0 {
		return nil, ErrEmptyCookie
	}

	cred := &Credential{}
	for _, c := range cookies {
		switch c.Name {
		case "DedeUserID":
			cred.UID = c.Value
		case "SESSDATA":
			cred.Token = c.Value
		case "bili_jct":
			cred.CSRF = c.Value
		}
	}

	if cred.UID == "" || cred.Token == "" || cred.CSRF == "" {
		return nil, ErrIllegalCookie
	}
	return cred, nil
}
