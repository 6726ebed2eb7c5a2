package bili

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LoginResult is broadcast to every waiter once a pending QR session
// resolves, successfully or not.
type LoginResult struct {
	Credential *Credential
	Jar        *Jar
	Cookies    []string
	Err        error
}

type loginRequest struct {
	reply chan loginOffer
}

type loginOffer struct {
	session *QRSession
	results <-chan LoginResult
	err     error
}

// Coordinator multiplexes concurrent login attempts onto a single pending QR
// session: every caller between a session's issuance and its resolution sees
// the same QRSession and the same eventual LoginResult.
type Coordinator struct {
	hc      *http.Client
	retries int
	logger  *slog.Logger
	mailbox chan loginRequest
}

// NewCoordinator starts the coordinator's actor goroutine, which runs until
// ctx is cancelled. retries bounds how many times QR generation (not QR
// polling) is retried before a request fails outright. logger may be nil to
// use slog.Default().
func NewCoordinator(ctx context.Context, hc *http.Client, retries int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{hc: hc, retries: retries, logger: logger, mailbox: make(chan loginRequest)}
	go c.run(ctx)
	return c
}

// RequestLogin asks the coordinator for a QR session to display. If one is
// already pending, this caller gets the same session and a fresh
// subscription to its eventual result; otherwise a new session is generated.
func (c *Coordinator) RequestLogin(ctx context.Context) (*QRSession, <-chan LoginResult, error) {
	reply := make(chan loginOffer, 1)
	select {
	case c.mailbox <- loginRequest{reply: reply}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	select {
	case offer := <-reply:
		if offer.err != nil {
			return nil, nil, offer.err
		}
		return offer.session, offer.results, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context) {
	for {
		var req loginRequest
		select {
		case req = <-c.mailbox:
		case <-ctx.Done():
			return
		}

		session, err := c.generateWithRetry(ctx)
		if err != nil {
			req.reply <- loginOffer{err: err}
			continue
		}

		sub := make(chan LoginResult, 1)
		subs := []chan LoginResult{sub}
		req.reply <- loginOffer{session: session, results: sub}

		resultCh := make(chan LoginResult, 1)
		go func(session *QRSession) {
			cred, jar, cookies, err := WaitForLogin(ctx, c.hc, session)
			resultCh <- LoginResult{Credential: cred, Jar: jar, Cookies: cookies, Err: err}
		}(session)

		c.waitOutSession(ctx, session, subs, resultCh)
	}
}

// waitOutSession services late joiners for the still-pending session and
// fans the eventual result out to every subscriber once it arrives.
func (c *Coordinator) waitOutSession(ctx context.Context, session *QRSession, subs []chan LoginResult, resultCh chan LoginResult) {
	for {
		select {
		case req := <-c.mailbox:
			late := make(chan LoginResult, 1)
			subs = append(subs, late)
			req.reply <- loginOffer{session: session, results: late}

		case result := <-resultCh:
			// Any failed poll (expired QR, unknown server code, transport
			// loss, shutdown) ends the attempt without a credential; waiters
			// only ever see LoginTimeout, the failure itself is logged here.
			if result.Err != nil {
				c.logger.Warn("qr login failed", "error", result.Err)
				result = LoginResult{Err: ErrLoginTimeout}
			}
			for _, sub := range subs {
				sub <- result
				close(sub)
			}
			return

		case <-ctx.Done():
			// Coordinator shut down while the QR was still pending; waiters
			// must not block forever on a channel nobody will ever write.
			for _, sub := range subs {
				sub <- LoginResult{Err: ErrLoginTimeout}
				close(sub)
			}
			return
		}
	}
}

func (c *Coordinator) generateWithRetry(ctx context.Context) (*QRSession, error) {
	var lastErr error
	for i := 0; i < c.retries; i++ {
		session, err := GenerateQR(ctx, c.hc)
		if err == nil {
			return session, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("bili: generate qr after %d attempts: %w", c.retries, lastErr)
}
