package bili_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bili "github.com/matcha-bili/bililive"
)

// qrTransport stubs the three endpoints a full QR login touches: generate,
// the warm-up HEAD, and poll. pollBody and pollCookies shape every poll
// response.
func qrTransport(generated *int32, pollBody string, pollCookies []string) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(r.URL.Path, "/qrcode/generate"):
			atomic.AddInt32(generated, 1)
			return jsonResponse(`{"code":0,"message":"ok","data":{"url":"https://example/qr","qrcode_key":"abc123"}}`), nil
		case strings.Contains(r.URL.Path, "/qrcode/poll"):
			resp := jsonResponse(pollBody)
			for _, c := range pollCookies {
				resp.Header.Add("Set-Cookie", c)
			}
			return resp, nil
		default: // warm-up HEAD against the home page
			return jsonResponse(``), nil
		}
	})
}

func TestCoordinator_SharesPendingSessionAcrossConcurrentCallers(t *testing.T) {
	var generated int32
	hc := &http.Client{Transport: qrTransport(&generated,
		`{"code":0,"message":"0","data":{"code":86101,"message":"未扫码"}}`, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := bili.NewCoordinator(ctx, hc, 3, nil)

	var wg sync.WaitGroup
	sessions := make([]*bili.QRSession, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, _, err := coord.RequestLogin(context.Background())
			require.NoError(t, err)
			sessions[i] = session
		}(i)
	}
	wg.Wait()

	for _, s := range sessions {
		require.NotNil(t, s)
		assert.Equal(t, "abc123", s.QrcodeKey)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&generated), "concurrent callers should share one generated QR session")
}

func TestCoordinator_BroadcastsSameCredentialToAllWaiters(t *testing.T) {
	var generated int32
	hc := &http.Client{Transport: qrTransport(&generated,
		`{"code":0,"message":"0","data":{"code":0,"message":""}}`,
		[]string{
			"DedeUserID=42; Path=/; Domain=.bilibili.com",
			"SESSDATA=sess123; Path=/; Domain=.bilibili.com; HttpOnly",
			"bili_jct=csrf456; Path=/; Domain=.bilibili.com",
		})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := bili.NewCoordinator(ctx, hc, 3, nil)

	const waiters = 4
	results := make([]bili.LoginResult, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ch, err := coord.RequestLogin(context.Background())
			require.NoError(t, err)
			results[i] = <-ch
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		require.NoError(t, r.Err, "waiter %d", i)
		require.NotNil(t, r.Credential)
		assert.Equal(t, "42", r.Credential.UID)
		assert.Equal(t, "sess123", r.Credential.Token)
		assert.Equal(t, "csrf456", r.Credential.CSRF)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&generated))
}

func TestCoordinator_TerminalFailureMapsToLoginTimeout(t *testing.T) {
	var generated int32
	hc := &http.Client{Transport: qrTransport(&generated,
		`{"code":0,"message":"0","data":{"code":86038,"message":"二维码已失效"}}`, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := bili.NewCoordinator(ctx, hc, 3, nil)

	_, ch, err := coord.RequestLogin(context.Background())
	require.NoError(t, err)

	select {
	case result := <-ch:
		assert.ErrorIs(t, result.Err, bili.ErrLoginTimeout, "expired QR must surface as login timeout, not the raw failure")
		assert.Nil(t, result.Credential)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never notified of the expired QR")
	}

	// The failed QR left the coordinator idle; the next request generates a
	// fresh session.
	_, _, err = coord.RequestLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&generated))
}

func TestCoordinator_GenerateWithRetryGivesUpAfterRetries(t *testing.T) {
	hc := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(`{"code":-101,"message":"not logged in"}`), nil
	})}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	coord := bili.NewCoordinator(ctx, hc, 2, nil)
	_, _, err := coord.RequestLogin(ctx)
	assert.Error(t, err)
}

func TestCoordinator_ShutdownWhilePendingUnblocksWaiters(t *testing.T) {
	var generated int32
	hc := &http.Client{Transport: qrTransport(&generated,
		`{"code":0,"message":"0","data":{"code":86101,"message":"未扫码"}}`, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	coord := bili.NewCoordinator(ctx, hc, 3, nil)

	_, ch, err := coord.RequestLogin(context.Background())
	require.NoError(t, err)

	cancel()

	select {
	case result := <-ch:
		assert.ErrorIs(t, result.Err, bili.ErrLoginTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter still blocked after coordinator shutdown")
	}
}
