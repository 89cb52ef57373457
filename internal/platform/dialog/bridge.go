package dialog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Envelope types exchanged with the terminal.
const (
	TypeDialog  = "dialog"
	TypeNotice  = "notice"
	TypeOpenURL = "open_url"
	TypeReply   = "reply"
	TypeAction  = "action"
	TypeResult  = "result"
)

// ErrSessionClosed is returned for dialogs pending when the terminal goes away.
var ErrSessionClosed = errors.New("dialog: terminal session closed")

// ErrBusy is reported when a terminal starts an action while another one is
// still waiting on the user.
var ErrBusy = errors.New("dialog: another action is in progress")

// Envelope is one websocket message in either direction.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Kind      Kind            `json:"kind,omitempty"`
	Props     any             `json:"props,omitempty"`
	Confirmed bool            `json:"confirmed,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Action    string          `json:"action,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Notice    *Notice         `json:"notice,omitempty"`
	URL       string          `json:"url,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ActionFunc runs a terminal-initiated action. It may open dialogs on the
// session; the returned value is sent back as the action result.
type ActionFunc func(ctx context.Context, s *Session, action string, data json.RawMessage) (any, error)

// Session bridges workflows running on the server to one POS terminal. It
// implements UI.
type Session struct {
	ID string

	conn Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Envelope
	closed  chan struct{}
	once    sync.Once

	busy atomic.Bool
}

// NewSession wraps an established connection.
func NewSession(conn Conn, log zerolog.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		ID:      id,
		conn:    conn,
		log:     log.With().Str("session_id", id).Logger(),
		pending: make(map[string]chan Envelope),
		closed:  make(chan struct{}),
	}
}

// Open sends a dialog request and waits for the terminal's reply.
func (s *Session) Open(ctx context.Context, kind Kind, props any) (Result, error) {
	id := uuid.New().String()
	ch := make(chan Envelope, 1)

	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	default:
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(Envelope{ID: id, Type: TypeDialog, Kind: kind, Props: props}); err != nil {
		return Result{}, err
	}

	select {
	case reply := <-ch:
		r := Result{Confirmed: reply.Confirmed}
		if len(reply.Payload) > 0 {
			r.Payload = reply.Payload
		}
		return r, nil
	case <-s.closed:
		return Result{}, ErrSessionClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Notify sends a notice. Failures are logged.
func (s *Session) Notify(_ context.Context, n Notice) {
	if err := s.write(Envelope{ID: uuid.New().String(), Type: TypeNotice, Notice: &n}); err != nil {
		s.log.Warn().Err(err).Str("title", n.Title).Msg("notice not delivered")
	}
}

// OpenURL asks the terminal to open a document.
func (s *Session) OpenURL(_ context.Context, url string) error {
	return s.write(Envelope{ID: uuid.New().String(), Type: TypeOpenURL, URL: url})
}

// Serve reads from the connection until it closes, routing replies to
// pending dialogs and running actions through handle. Only one action runs
// at a time per terminal.
func (s *Session) Serve(ctx context.Context, handle ActionFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.shutdown()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.log.Debug().Err(err).Msg("ignoring malformed message")
			continue
		}

		switch env.Type {
		case TypeReply:
			s.deliver(env)
		case TypeAction:
			if !s.busy.CompareAndSwap(false, true) {
				_ = s.write(Envelope{ID: env.ID, Type: TypeResult, Action: env.Action, Error: ErrBusy.Error()})
				continue
			}
			go s.runAction(ctx, handle, env)
		}
	}
}

func (s *Session) runAction(ctx context.Context, handle ActionFunc, env Envelope) {
	defer s.busy.Store(false)

	out := Envelope{ID: env.ID, Type: TypeResult, Action: env.Action}
	v, err := handle(ctx, s, env.Action, env.Data)
	if err != nil {
		out.Error = err.Error()
	} else if v != nil {
		raw, merr := json.Marshal(v)
		if merr != nil {
			out.Error = merr.Error()
		} else {
			out.Payload = raw
		}
	}
	if werr := s.write(out); werr != nil {
		s.log.Warn().Err(werr).Str("action", env.Action).Msg("action result not delivered")
	}
}

func (s *Session) deliver(env Envelope) {
	s.mu.Lock()
	ch, ok := s.pending[env.ID]
	s.mu.Unlock()
	if !ok {
		s.log.Debug().Str("dialog_id", env.ID).Msg("reply for unknown dialog")
		return
	}
	select {
	case ch <- env:
	default:
	}
}

func (s *Session) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", env.Type, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(gorillawebsocket.TextMessage, data)
}

func (s *Session) shutdown() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.closed)
		s.mu.Unlock()
		_ = s.conn.Close()
	})
}

// ---------------------------------------------------------------------------
// Handler: Echo endpoint for terminal connections
// ---------------------------------------------------------------------------

// Handler upgrades terminal connections and serves them.
type Handler struct {
	upgrader gorillawebsocket.Upgrader
	actions  ActionFunc
	log      zerolog.Logger
}

// NewHandler creates a handler that routes terminal actions to actions.
// checkOrigin may be nil to accept any origin.
func NewHandler(actions ActionFunc, checkOrigin func(r *http.Request) bool, log zerolog.Logger) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		actions: actions,
		log:     log,
	}
}

// RegisterRoutes registers the terminal endpoint.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws/pos", h.HandleConnect)
}

// HandleConnect upgrades the request and blocks until the terminal leaves.
func (h *Handler) HandleConnect(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s := NewSession(ws, h.log)
	s.log.Info().Str("remote_ip", c.RealIP()).Msg("terminal connected")

	err = s.Serve(c.Request().Context(), h.actions)
	if gorillawebsocket.IsCloseError(err, gorillawebsocket.CloseNormalClosure, gorillawebsocket.CloseGoingAway) {
		err = nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("terminal disconnected")
	} else {
		s.log.Info().Msg("terminal disconnected")
	}
	return nil
}
