package bili

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// defaultHTTPClient gives every API request a 3s connect deadline and a 5s
// total-request deadline.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
			TLSHandshakeTimeout: 3 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
		Timeout: 5 * time.Second,
	}
}

// Client is the top-level entry point: it owns the credential/cookie jar,
// the WBI signer, the API client, the shared Login Coordinator, and the
// per-room Supervisors it starts on Subscribe.
type Client struct {
	mu     sync.Mutex
	hc     *http.Client
	jar    *Jar
	signer *Signer
	api    *APIClient
	logger *slog.Logger

	coordinator  *Coordinator
	coordCancel  context.CancelFunc
	loginRetries int

	rooms map[int64]*Supervisor
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCredential authenticates the client with an already-obtained
// Credential and its cookie jar, e.g. one loaded from a saved token file.
func WithCredential(cred *Credential, jar *Jar) ClientOption {
	return func(c *Client) {
		c.api.cred = cred
		c.jar = jar
	}
}

// WithHTTPClient overrides the default HTTP client used for every API and
// login request.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithLoginRetries bounds how many times the shared Login Coordinator
// retries QR generation before giving up on a request. Default is 3.
func WithLoginRetries(n int) ClientOption {
	return func(c *Client) { c.loginRetries = n }
}

// NewClient constructs a Client. Call RequestLogin, or pass WithCredential,
// before using an operation that requires an authenticated session.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		hc:           defaultHTTPClient(),
		logger:       slog.Default(),
		rooms:        make(map[int64]*Supervisor),
		loginRetries: 3,
	}
	c.api = &APIClient{maxDanmakuLen: 20, cooldown: 5 * time.Second}
	for _, o := range opts {
		o(c)
	}

	c.api.hc = c.hc
	c.api.jar = c.jar
	c.api.signer = NewSigner(c.hc, jarCookieSource(c.jar))
	c.signer = c.api.signer

	coordCtx, cancel := context.WithCancel(context.Background())
	c.coordCancel = cancel
	c.coordinator = NewCoordinator(coordCtx, c.hc, c.loginRetries, c.logger)
	return c
}

// API returns the underlying API client for direct use: SendBarrage,
// SendGift, LikeReport, ShareRoom, GetDanmuInfo, GetRoomPlayInfo,
// GetUserInfo.
func (c *Client) API() *APIClient { return c.api }

// Authenticate completes once with a fresh Credential, wiring it (and its
// jar) into the API client for subsequent calls.
func (c *Client) Authenticate(cred *Credential, jar *Jar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.api.cred = cred
	c.api.jar = jar
	c.jar = jar
	c.api.signer = NewSigner(c.hc, jarCookieSource(jar))
}

// RequestLogin asks the shared Login Coordinator for a QR session, sharing
// one pending QR session across every concurrent caller.
func (c *Client) RequestLogin(ctx context.Context) (*QRSession, <-chan LoginResult, error) {
	return c.coordinator.RequestLogin(ctx)
}

// Subscribe starts (or reuses) a Supervisor for roomID and returns the
// channel of decoded server messages. maxRetry bounds consecutive
// reconnect attempts for that room before the Supervisor gives up.
func (c *Client) Subscribe(ctx context.Context, roomID int64, maxRetry int) <-chan ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sup, ok := c.rooms[roomID]; ok {
		return sup.Messages()
	}

	sup := NewSupervisor(c.api, roomID, maxRetry, c.logger)
	c.rooms[roomID] = sup

	go func() {
		if err := sup.Run(ctx); err != nil {
			c.logger.Warn("supervisor stopped", "room", roomID, "error", err)
		}
		c.mu.Lock()
		delete(c.rooms, roomID)
		c.mu.Unlock()
	}()

	return sup.Messages()
}

// Unsubscribe stops the Supervisor for roomID, if one is running.
func (c *Client) Unsubscribe(roomID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sup, ok := c.rooms[roomID]; ok {
		sup.Stop()
	}
}

// Close stops the shared Login Coordinator's actor goroutine. Existing
// Supervisors are unaffected; Unsubscribe each room separately.
func (c *Client) Close() {
	c.coordCancel()
}
