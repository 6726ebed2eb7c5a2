package bili_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bili "github.com/matcha-bili/bililive"
)

func TestGenerateQR_Success(t *testing.T) {
	hc := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(`{"code":0,"message":"0","data":{"url":"https://passport.bilibili.com/qrcode/abc","qrcode_key":"key123"}}`), nil
	})}

	session, err := bili.GenerateQR(context.Background(), hc)
	require.NoError(t, err)
	assert.Equal(t, "key123", session.QrcodeKey)
	assert.Contains(t, session.URL, "qrcode/abc")
}

func TestGenerateQR_BusinessError(t *testing.T) {
	hc := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(`{"code":-101,"message":"账号未登录"}`), nil
	})}

	_, err := bili.GenerateQR(context.Background(), hc)
	assert.Error(t, err)
}

func TestWaitForLogin_Confirmed(t *testing.T) {
	var generated int32
	hc := &http.Client{Transport: qrTransport(&generated,
		`{"code":0,"message":"0","data":{"code":0,"message":""}}`,
		[]string{
			"DedeUserID=42; Path=/; Domain=.bilibili.com",
			"SESSDATA=sess123; Path=/; Domain=.bilibili.com; HttpOnly",
			"bili_jct=csrf456; Path=/; Domain=.bilibili.com",
		})}

	cred, jar, cookies, err := bili.WaitForLogin(context.Background(), hc, &bili.QRSession{QrcodeKey: "abc123"})
	require.NoError(t, err)
	require.NotNil(t, jar)

	assert.Equal(t, "42", cred.UID)
	assert.Equal(t, "sess123", cred.Token)
	assert.Equal(t, "csrf456", cred.CSRF)
	assert.Len(t, cookies, 3, "captured Set-Cookie lines should be returned for persistence")
}

func TestWaitForLogin_Expired(t *testing.T) {
	var generated int32
	hc := &http.Client{Transport: qrTransport(&generated,
		`{"code":0,"message":"0","data":{"code":86038,"message":"二维码已失效"}}`, nil)}

	_, _, _, err := bili.WaitForLogin(context.Background(), hc, &bili.QRSession{QrcodeKey: "abc123"})
	require.Error(t, err)
	var terminal *bili.QrTerminalFailure
	require.ErrorAs(t, err, &terminal)
	assert.True(t, terminal.Expired)
}
