package bili

import (
	"errors"
	"fmt"
)

// CredentialError is returned by FromRawCookies/FromJar when the cookie jar
// does not carry a complete, usable credential. It is never retried.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("bili: credential error: %s", e.Reason)
}

var (
	// ErrEmptyCookie is returned when the jar has no cookies at all for the
	// Bilibili origin.
	ErrEmptyCookie = &CredentialError{Reason: "empty cookie jar"}
	// ErrIllegalCookie is returned when one of the three required cookie
	// values is missing or empty.
	ErrIllegalCookie = &CredentialError{Reason: "illegal cookie: DedeUserID/SESSDATA/bili_jct incomplete"}
)

// BusinessError wraps an API envelope whose code is non-zero. Its meaning is
// endpoint-specific; it is never retried by this package.
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("bili: business error %d: %s", e.Code, e.Message)
}

// UnknownGiftError is returned when a gift name is not in the fixed catalog.
type UnknownGiftError struct {
	Name  string
	Known []string
}

func (e *UnknownGiftError) Error() string {
	return fmt.Sprintf("bili: unknown gift %q, known gifts: %v", e.Name, e.Known)
}

// QrTerminalFailure is returned by the Login Flow (WaitForLogin) when a QR
// poll reaches a non-recoverable terminal state (expired, or an opaque
// unknown server code). The Login Coordinator logs it and delivers
// ErrLoginTimeout to its waiters instead.
type QrTerminalFailure struct {
	Code    int
	Message string
	Expired bool
}

func (e *QrTerminalFailure) Error() string {
	if e.Expired {
		return "bili: qr login expired"
	}
	return fmt.Sprintf("bili: qr login failed: code=%d message=%s", e.Code, e.Message)
}

// Sentinel errors for the framing codec and the supervisor/coordinator
// terminal signals.
var (
	ErrBadHeader    = errors.New("bili: frame: bad header")
	ErrUndefinedMsg = errors.New("bili: frame: undefined protocol version or op")
	ErrInflate      = errors.New("bili: frame: inflate failed")
	ErrDecodeBody   = errors.New("bili: frame: decode body failed")

	// ErrConsumerClosed is the Supervisor's internal signal that the
	// consumer has gone away (Stop was called); a session that ends after
	// Stop reports it so Run stops reconnecting.
	ErrConsumerClosed = errors.New("bili: consumer closed")
	// ErrTxClose is surfaced by Run when the supervisor terminates
	// permanently because the consumer closed it (never reconnects again).
	ErrTxClose = errors.New("bili: tx close")
	// ErrRetryTimeout is surfaced when max_retry consecutive sessions have
	// failed.
	ErrRetryTimeout = errors.New("bili: retry timeout")

	// ErrLoginTimeout is delivered in LoginResult.Err to Login Coordinator
	// subscribers when the pending QR fails or the coordinator shuts down
	// before it is confirmed; the subscriber channel is closed right after.
	ErrLoginTimeout = errors.New("bili: login timeout")
	// ErrCoordinatorStopped names the state in which the coordinator's actor
	// goroutine has exited. RequestLogin does not return it: a request made
	// after the coordinator stopped waits until the caller's ctx is done and
	// returns ctx.Err().
	ErrCoordinatorStopped = errors.New("bili: login coordinator stopped")
)

// transportError tags an error as network/IO in nature so callers can tell
// it apart from BusinessError/CredentialError without string matching.
type transportError struct {
	op  string
	err error
}

func (e *transportError) Error() string { return fmt.Sprintf("bili: %s: %v", e.op, e.err) }
func (e *transportError) Unwrap() error { return e.err }

func wrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &transportError{op: op, err: err}
}
