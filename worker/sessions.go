package worker

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Siddamnandas/Vibely-sub004/protocol"
)

// Keepalive timing. The hub pings every session and the pong handler
// refreshes the read deadline, so listen-only pages stay connected
// indefinitely. Vars so tests can shorten them.
var (
	sessionReadDeadline = 60 * time.Second
	sessionPingInterval = 30 * time.Second
)

// session is one connected page instance.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer per conn
}

func (s *session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// SessionHub tracks open page sessions and carries the typed message
// protocol between pages and the worker. It satisfies the push bridge's
// Pages interface: an open session receives click messages instead of a new
// window.
type SessionHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// inbound handles page → worker messages. reply sends back to the
	// originating session only.
	inbound func(ctx context.Context, msg protocol.Message, reply func(protocol.Message))

	mu       sync.RWMutex
	sessions map[*websocket.Conn]*session
	closed   bool

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewSessionHub creates a hub. The inbound handler may be nil (tests that
// only broadcast).
func NewSessionHub(logger *slog.Logger, inbound func(ctx context.Context, msg protocol.Message, reply func(protocol.Message))) *SessionHub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &SessionHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		logger:   logger,
		inbound:  inbound,
		sessions: make(map[*websocket.Conn]*session),
		shutdown: make(chan struct{}),
	}

	h.wg.Add(1)
	go h.pingLoop()

	return h
}

// HandleWS upgrades an HTTP request into a page session.
func (h *SessionHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("session upgrade failed", "error", err)
		return
	}

	s := &session{conn: conn}
	_ = conn.SetReadDeadline(time.Now().Add(sessionReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(sessionReadDeadline))
	})

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.sessions[conn] = s
	count := len(h.sessions)
	h.mu.Unlock()

	h.logger.Info("page session connected", "sessions", count)

	h.wg.Add(1)
	// The request context dies when this handler returns; the session
	// outlives it.
	go h.readLoop(context.WithoutCancel(r.Context()), s)
}

// readLoop consumes messages from one session until it closes.
func (h *SessionHub) readLoop(ctx context.Context, s *session) {
	defer h.wg.Done()
	defer h.remove(s)

	for {
		select {
		case <-h.shutdown:
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(sessionReadDeadline))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			h.logger.Warn("session message rejected", "error", err)
			continue
		}

		if h.inbound != nil {
			h.inbound(ctx, msg, func(reply protocol.Message) {
				if err := h.sendTo(s, reply); err != nil {
					h.logger.Debug("session reply failed", "error", err)
				}
			})
		}
	}
}

// pingLoop keeps idle sessions alive until the hub shuts down.
func (h *SessionHub) pingLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(sessionPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.shutdown:
			return
		case <-ticker.C:
			h.pingSessions()
		}
	}
}

func (h *SessionHub) pingSessions() {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.ping(); err != nil {
			h.logger.Debug("session ping failed", "error", err)
			// readLoop notices the dead conn and removes the session.
			_ = s.conn.Close()
		}
	}
}

func (h *SessionHub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.conn)
	count := len(h.sessions)
	h.mu.Unlock()

	_ = s.conn.Close()
	h.logger.Info("page session closed", "sessions", count)
}

// HasOpenSession reports whether any page is connected.
func (h *SessionHub) HasOpenSession() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions) > 0
}

// SessionCount returns the number of connected pages.
func (h *SessionHub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Post broadcasts a message to every open session.
func (h *SessionHub) Post(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.send(data); err != nil {
			h.logger.Debug("session broadcast failed", "error", err)
		}
	}
	return nil
}

func (h *SessionHub) sendTo(s *session, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return s.send(data)
}

// Close disconnects all sessions and stops accepting new ones.
func (h *SessionHub) Close(timeout time.Duration) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.shutdown)
	for conn := range h.sessions {
		_ = conn.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return nil // readers exit on their next deadline
	}
}
