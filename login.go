package bili

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const (
	qrGenerateURL = "https://passport.bilibili.com/x/passport-login/web/qrcode/generate?source=main-fe-header"
	qrPollURL     = "https://passport.bilibili.com/x/passport-login/web/qrcode/poll"
	warmupURL     = "https://www.bilibili.com/"
	qrPollPeriod  = time.Second
)

// QR poll status codes returned by Bilibili's passport endpoint.
const (
	qrConfirmed        = 0
	qrNotScanned       = 86101
	qrExpired          = 86038
	qrScannedNoConfirm = 86090
)

// QRSession is an issued QR login challenge: a URL to render as a QR code
// and the opaque key used to poll its status.
type QRSession struct {
	URL       string
	QrcodeKey string
}

type qrGenerateData struct {
	URL       string `json:"url"`
	QrcodeKey string `json:"qrcode_key"`
}

// GenerateQR issues a fresh QR login challenge.
func GenerateQR(ctx context.Context, hc *http.Client) (*QRSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, qrGenerateURL, nil)
	if err != nil {
		return nil, err
	}
	setCommonHeaders(req, "")

	env, err := doJSON[qrGenerateData](hc, req)
	if err != nil {
		return nil, err
	}
	if env.Code != 0 || env.Data.QrcodeKey == "" {
		return nil, &BusinessError{Code: env.Code, Message: env.Message}
	}
	return &QRSession{URL: env.Data.URL, QrcodeKey: env.Data.QrcodeKey}, nil
}

type qrPollData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// pollOnce issues a single poll request and returns the decoded status plus
// any Set-Cookie headers the response carried.
func pollOnce(ctx context.Context, hc *http.Client, key string) (*qrPollData, []string, error) {
	form := url.Values{"qrcode_key": {key}, "source": {"main-fe-header"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, qrPollURL+"?"+form.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	setCommonHeaders(req, "")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, wrapTransport("qr poll", err)
	}
	defer resp.Body.Close()

	cookies := append([]string(nil), resp.Header.Values("Set-Cookie")...)

	env, err := decodeBody[qrPollData](resp)
	if err != nil {
		return nil, nil, err
	}
	return &env.Data, cookies, nil
}

// WaitForLogin blocks until session is confirmed, reaches a terminal
// failure, or ctx is cancelled. It issues a warm-up HEAD request to
// bilibili.com first, so the cookies the confirmation sets are actually
// recorded against a primed jar — mirroring the home-page visit the
// original login flow makes before it starts polling.
//
// base supplies the transport for every poll request; its cookie jar is
// ignored, since each QR session collects cookies into its own fresh jar.
// base may be nil to use http.DefaultTransport.
func WaitForLogin(ctx context.Context, base *http.Client, session *QRSession) (*Credential, *Jar, []string, error) {
	jar, err := NewJar()
	if err != nil {
		return nil, nil, nil, err
	}
	hc := &http.Client{Jar: jar.Jar, Timeout: 15 * time.Second}
	if base != nil {
		hc.Transport = base.Transport
	}

	warmup, err := http.NewRequestWithContext(ctx, http.MethodHead, warmupURL, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	setCommonHeaders(warmup, "")
	resp, err := hc.Do(warmup)
	if err != nil {
		return nil, nil, nil, wrapTransport("login warm-up", err)
	}
	resp.Body.Close()

	ticker := time.NewTicker(qrPollPeriod)
	defer ticker.Stop()

	var allCookies []string
	for {
		select {
		case <-ctx.Done():
			return nil, nil, nil, ctx.Err()
		case <-ticker.C:
		}

		data, cookies, err := pollOnce(ctx, hc, session.QrcodeKey)
		if err != nil {
			return nil, nil, nil, err
		}
		allCookies = append(allCookies, cookies...)

		switch data.Code {
		case qrNotScanned, qrScannedNoConfirm:
			continue
		case qrConfirmed:
			cred, err := FromJar(jar)
			if err != nil {
				return nil, nil, nil, err
			}
			return cred, jar, allCookies, nil
		case qrExpired:
			return nil, nil, nil, &QrTerminalFailure{Code: data.Code, Expired: true}
		default:
			return nil, nil, nil, &QrTerminalFailure{Code: data.Code, Message: data.Message}
		}
	}
}
