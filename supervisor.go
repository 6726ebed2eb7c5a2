package bili

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Backoff schedule and session-reset policy.
const (
	heartbeatInterval = 30 * time.Second
	shortBackoff      = 10 * time.Second
	longBackoff       = 300 * time.Second
	backoffStepLimit  = 10
	sessionResetAfter = 30 * time.Minute
	consumerBacklog   = 64
)

// ServerMessageKind tags what a ServerMessage carries.
type ServerMessageKind int

const (
	KindLoginAck ServerMessageKind = iota
	KindHeartbeatAck
	KindNotification
)

// ServerMessage is one unit the Supervisor hands to its consumer.
type ServerMessage struct {
	Kind         ServerMessageKind
	Notification NotificationMsg
	Popularity   uint32
}

// Supervisor runs the connect/auth/heartbeat/reconnect loop for a single
// room's live WebSocket subscription. It reconnects with a bounded backoff
// schedule and gives up permanently once maxRetry consecutive sessions have
// failed, or once the consumer stops reading (Stop).
type Supervisor struct {
	roomID   int64
	api      *APIClient
	maxRetry int
	logger   *slog.Logger

	shortBackoff time.Duration
	longBackoff  time.Duration
	resetAfter   time.Duration

	out      chan ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithBackoffSchedule overrides the reconnect backoff delays: short for the
// first ten retries, long thereafter.
func WithBackoffSchedule(short, long time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.shortBackoff = short
		s.longBackoff = long
	}
}

// WithRetryResetAfter overrides how long a session must last for its failure
// to reset the consecutive-retry counter.
func WithRetryResetAfter(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.resetAfter = d }
}

// NewSupervisor creates a Supervisor for roomID using api for connection
// setup (danmu-info resolution). logger may be nil to use slog.Default().
func NewSupervisor(api *APIClient, roomID int64, maxRetry int, logger *slog.Logger, opts ...SupervisorOption) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Supervisor{
		roomID:       roomID,
		api:          api,
		maxRetry:     maxRetry,
		logger:       logger,
		shortBackoff: shortBackoff,
		longBackoff:  longBackoff,
		resetAfter:   sessionResetAfter,
		out:          make(chan ServerMessage, consumerBacklog),
		stop:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Messages returns the channel Run publishes decoded server messages to. It
// is closed when Run returns.
func (s *Supervisor) Messages() <-chan ServerMessage {
	return s.out
}

// Stop tells the Supervisor its consumer is gone; the in-flight session is
// torn down and Run returns ErrTxClose.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run drives the reconnect loop until ctx is cancelled, Stop is called, or
// maxRetry consecutive sessions have failed in a row.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.out)

	var reconnects int
	for {
		reconnects++

		log := s.logger.With("room", s.roomID, "session", uuid.NewString(), "attempt", reconnects)
		start := time.Now()

		err := s.runSession(ctx, log)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == ErrConsumerClosed {
			return ErrTxClose
		}
		log.Warn("session ended, reconnecting", "error", err)

		if time.Since(start) >= s.resetAfter {
			reconnects = 0
		}
		if reconnects >= s.maxRetry {
			s.logger.Error("reconnect attempts exhausted", "room", s.roomID)
			return ErrRetryTimeout
		}

		delay := s.shortBackoff
		if reconnects > backoffStepLimit {
			delay = s.longBackoff
		}
		log.Info("reconnecting after backoff", "backoff", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.stop:
			timer.Stop()
			return ErrTxClose
		case <-timer.C:
		}
	}
}

func (s *Supervisor) runSession(ctx context.Context, log *slog.Logger) error {
	info, err := s.api.GetDanmuInfo(ctx, uint64(s.roomID))
	if err != nil {
		return fmt.Errorf("bili: get danmu info: %w", err)
	}
	if info.Code != 0 {
		return &BusinessError{Code: info.Code, Message: info.Message}
	}

	conn, err := dialHostList(ctx, info.Data.HostList)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Anonymous subscriptions are allowed: with no credential the login
	// frame carries a null uid and the server still streams notifications.
	var uid int64
	if s.api.cred != nil {
		uid, _ = parseUID(s.api.cred.UID)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-sessCtx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(sessCtx)
	// ReadMessage does not watch a context; closing the socket is what
	// unblocks the read-half once the session is cancelled.
	go func() {
		<-gctx.Done()
		conn.Close()
	}()
	g.Go(func() error { return s.writeHalf(gctx, conn, uid, info.Data.Token, log) })
	g.Go(func() error { return s.readHalf(gctx, conn, log) })

	if err := g.Wait(); err != nil {
		if isStopped(s.stop) {
			return ErrConsumerClosed
		}
		return err
	}
	return nil
}

func (s *Supervisor) writeHalf(ctx context.Context, conn *websocket.Conn, uid int64, token string, log *slog.Logger) error {
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeLogin(s.roomID, uid, token)); err != nil {
		return wrapTransport("send login frame", err)
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.BinaryMessage, EncodeHeartbeat()); err != nil {
				return wrapTransport("send heartbeat frame", err)
			}
			log.Debug("heartbeat sent")
		}
	}
}

func (s *Supervisor) readHalf(ctx context.Context, conn *websocket.Conn, log *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return wrapTransport("read", err)
		}
		if msgType != websocket.BinaryMessage {
			log.Debug("ignoring non-binary message", "type", msgType)
			continue
		}

		frames, err := Decode(data)
		if err != nil {
			log.Warn("frame decode error", "error", err)
			continue
		}

		for _, f := range frames {
			msg, ok, err := translateFrame(f)
			if err != nil {
				log.Debug("notification decode error", "error", err)
				continue
			}
			if !ok {
				continue
			}
			select {
			case s.out <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func translateFrame(f Frame) (ServerMessage, bool, error) {
	switch f.OpType {
	case OpCertificateResp:
		return ServerMessage{Kind: KindLoginAck}, true, nil
	case OpHeartbeatReply:
		var pop uint32
		if len(f.Body) >= 4 {
			pop = binary.BigEndian.Uint32(f.Body[:4])
		}
		return ServerMessage{Kind: KindHeartbeatAck, Popularity: pop}, true, nil
	case OpCommand:
		n, err := DecodeNotification(f.Body)
		if err != nil {
			return ServerMessage{}, false, err
		}
		return ServerMessage{Kind: KindNotification, Notification: n}, true, nil
	default:
		return ServerMessage{}, false, nil
	}
}

func dialHostList(ctx context.Context, hosts []LiveHost) (*websocket.Conn, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("bili: no wss hosts offered")
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set("User-Agent", userAgent)

	var lastErr error
	for _, h := range hosts {
		url := fmt.Sprintf("wss://%s:%d/sub", h.Host, h.WSSPort)
		conn, _, err := dialer.DialContext(ctx, url, header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, wrapTransport("dial all hosts", lastErr)
}

func parseUID(raw string) (int64, error) {
	var uid int64
	_, err := fmt.Sscanf(raw, "%d", &uid)
	return uid, err
}

func isStopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
