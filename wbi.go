package bili

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// mixinKeyTable is the fixed 64-element permutation table Bilibili uses to
// derive the WBI mixin key from img_key+sub_key. Constant, externally
// dictated — copied bit-for-bit from the reference implementation.
var mixinKeyTable = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35,
	27, 43, 5, 49, 33, 9, 42, 19, 29, 28, 14, 39, 12, 38, 41, 13,
	37, 48, 7, 16, 24, 55, 40, 61, 26, 17, 0, 1, 60, 51, 30, 4,
	22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11, 36, 20, 34, 44, 52,
}

const navURL = "https://api.bilibili.com/x/web-interface/nav"

// defaultWbiTTL is the cache lifetime for fetched WBI keys. Bilibili
// rotates them roughly daily.
const defaultWbiTTL = time.Hour

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithWbiTTL overrides the default one-hour key cache lifetime.
func WithWbiTTL(d time.Duration) SignerOption {
	return func(s *Signer) { s.ttl = d }
}

// cookieSource lets Signer attach the caller's cookies to the nav fetch
// without depending on *cookiejar.Jar's concrete type.
type cookieSource interface {
	cookieHeader() string
}

// Signer fetches and caches the WBI signing-key pair and mixes it into
// request-parameter signatures.
type Signer struct {
	hc  *http.Client
	jar cookieSource
	ttl time.Duration

	mu        sync.Mutex
	imgKey    string
	subKey    string
	fetchedAt time.Time
}

// NewSigner creates a Signer using hc for the nav-endpoint fetch. jar may be
// nil for anonymous (unauthenticated) signing.
func NewSigner(hc *http.Client, jar cookieSource, opts ...SignerOption) *Signer {
	s := &Signer{hc: hc, jar: jar, ttl: defaultWbiTTL}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WbiKeys is the (img_key, sub_key) pair fetched from the nav endpoint.
type WbiKeys struct {
	ImgKey string
	SubKey string
}

// Keys returns the current WBI key pair, fetching (and caching) it from the
// nav endpoint if the cache is empty or has expired.
func (s *Signer) Keys(ctx context.Context) (WbiKeys, error) {
	s.mu.Lock()
	if s.imgKey != "" && time.Since(s.fetchedAt) < s.ttl {
		k := WbiKeys{ImgKey: s.imgKey, SubKey: s.subKey}
		s.mu.Unlock()
		return k, nil
	}
	s.mu.Unlock()

	imgKey, subKey, err := s.fetchKeys(ctx)
	if err != nil {
		return WbiKeys{}, err
	}

	s.mu.Lock()
	s.imgKey, s.subKey, s.fetchedAt = imgKey, subKey, time.Now()
	s.mu.Unlock()

	return WbiKeys{ImgKey: imgKey, SubKey: subKey}, nil
}

func (s *Signer) fetchKeys(ctx context.Context) (imgKey, subKey string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, navURL, nil)
	if err != nil {
		return "", "", err
	}
	setCommonHeaders(req, s.cookieHeader())

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", "", wrapTransport("nav request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", wrapTransport("read nav response", err)
	}

	var result struct {
		Code int `json:"code"`
		Data struct {
			WbiImg struct {
				ImgURL string `json:"img_url"`
				SubURL string `json:"sub_url"`
			} `json:"wbi_img"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", "", fmt.Errorf("bili: parse nav response: %w", err)
	}
	if result.Code != 0 {
		return "", "", &BusinessError{Code: result.Code, Message: "nav"}
	}

	imgKey = strings.TrimSuffix(path.Base(result.Data.WbiImg.ImgURL), path.Ext(result.Data.WbiImg.ImgURL))
	subKey = strings.TrimSuffix(path.Base(result.Data.WbiImg.SubURL), path.Ext(result.Data.WbiImg.SubURL))
	return imgKey, subKey, nil
}

func (s *Signer) cookieHeader() string {
	if s.jar == nil {
		return ""
	}
	return s.jar.cookieHeader()
}

// mixinKeyFor derives the 32-char signing key from img_key+sub_key using the
// fixed permutation table.
func mixinKeyFor(keys WbiKeys) string {
	raw := keys.ImgKey + keys.SubKey
	var b strings.Builder
	for _, idx := range mixinKeyTable {
		if idx < len(raw) {
			b.WriteByte(raw[idx])
		}
	}
	s := b.String()
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}

// Sign signs params: sanitize values, insert wts, sort keys
// ascending, URL-encode and join, then append "&w_rid=" + md5(joined+mixin).
func (s *Signer) Sign(ctx context.Context, params map[string]string) (string, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return "", err
	}
	return signWithTimestamp(params, mixinKeyFor(keys), time.Now().Unix()), nil
}

// signWithTimestamp implements the deterministic part of the algorithm
// given a fixed wts, letting tests assert sort-stability and idempotence
// without depending on wall-clock time.
func signWithTimestamp(params map[string]string, mixin string, wts int64) string {
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = sanitizeWbiValue(v)
	}
	merged["wts"] = strconv.FormatInt(wts, 10)

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var query strings.Builder
	for i, k := range keys {
		if i > 0 {
			query.WriteByte('&')
		}
		query.WriteString(url.QueryEscape(k))
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(merged[k]))
	}
	joined := query.String()

	h := md5.Sum([]byte(joined + mixin))
	return joined + "&w_rid=" + hex.EncodeToString(h[:])
}

// sanitizeWbiValue strips the characters Bilibili rejects in wbi-signed
// values: space, '!', '\'', '(', ')', '*'.
func sanitizeWbiValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '!', '\'', '(', ')', '*':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func setCommonHeaders(req *http.Request, cookies string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://live.bilibili.com/")
	req.Header.Set("Origin", "https://live.bilibili.com")
	if cookies != "" {
		req.Header.Set("Cookie", cookies)
	}
}
