package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"direct-chat/domain"
	"direct-chat/domain/event"
	"direct-chat/errors"
	"direct-chat/services"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// Control frames carry at most 125 payload bytes, two of which hold
	// the close code.
	maxCloseReason = 123
)

// State enumerates the session lifecycle. Every exit path, including
// failures before the join completed, runs the same idempotent cleanup.
type State int

const (
	StateConnecting State = iota
	StateJoined
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the live, stateful representation of one connected
// participant in one room. Ephemeral: created on connect, destroyed on
// disconnect, never persisted.
type Session struct {
	id    string
	local domain.Identity
	peer  domain.Identity
	conn  *websocket.Conn
	sink  *Sink
	chat  services.IChatService
	log   *slog.Logger

	mu      sync.Mutex
	state   State
	roomKey domain.RoomKey
	joined  bool

	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSession(id string, local, peer domain.Identity, conn *websocket.Conn,
	sink *Sink, chat services.IChatService, log *slog.Logger) *Session {
	return &Session{
		id:    id,
		local: local,
		peer:  peer,
		conn:  conn,
		sink:  sink,
		chat:  chat,
		log:   log,
		state: StateConnecting,
		done:  make(chan struct{}),
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// CurrentState reports the lifecycle state, for observability and tests.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the session to completion: join the room, replay history,
// then pump live traffic until the transport disconnects. Blocks until
// the session is closed.
func (s *Session) Run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	defer s.Close()

	room, err := s.chat.JoinRoom(s.id, s.local, s.peer, s.sink)
	if err != nil {
		s.log.Warn("Join rejected", "session", s.id, "local", s.local,
			"peer", s.peer, "error", err)
		s.reject(err)
		return
	}
	s.mu.Lock()
	s.roomKey = room.Key
	s.joined = true
	s.state = StateJoined
	s.mu.Unlock()

	// History goes out before the read loop starts: no inbound message
	// is accepted until the replay is fully delivered.
	if err := s.sendHistory(); err != nil {
		s.log.Error("History delivery failed", "session", s.id,
			"room", s.roomKey, "error", err)
		s.reject(err)
		return
	}
	s.setState(StateActive)

	go s.writePump(ctx)
	s.readPump(ctx)
}

// Close releases everything the session holds. Idempotent and safe even
// if the join never completed: leaving an unjoined room is a no-op at
// the registry.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		joined := s.joined
		roomKey := s.roomKey
		s.state = StateClosed
		s.mu.Unlock()

		if joined {
			s.chat.LeaveRoom(s.id, roomKey)
		}
		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
		_ = s.conn.Close()
		s.log.Info("Session closed", "session", s.id, "room", roomKey)
	})
}

// reject surfaces a fatal error to the client as an explicit close
// frame, then tears the session down. The frame goes out through
// WriteControl: the write pump may be mid-frame when a storage failure
// arrives from the read side, and the connection permits only one
// concurrent data writer.
func (s *Session) reject(err error) {
	code := errors.MapToCloseCode(err)
	reason := err.Error()
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	message := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
}

func (s *Session) sendHistory() error {
	messages, err := s.chat.History(s.roomKey)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(toHistoryEvent(messages))
}

// readPump accepts inbound payloads until the transport disconnects.
// Malformed or blank payloads are dropped without erroring the
// connection; a storage failure is fatal because a broadcast must never
// imply an append that did not happen.
func (s *Session) readPump(ctx context.Context) {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Read failed", "session", s.id, "error", err)
			}
			return
		}

		var payload inboundPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue // one bad message never kills the connection
		}
		content := strings.TrimSpace(payload.Message)
		if content == "" {
			continue
		}

		err = s.chat.PostMessage(ctx, domain.PostMessageCommand{
			RoomKey:   s.roomKey,
			Sender:    s.local,
			Recipient: s.peer,
			Content:   content,
		})
		if err != nil {
			s.log.Error("Append failed, closing session", "session", s.id,
				"room", s.roomKey, "error", err)
			s.reject(err)
			return
		}
	}
}

// writePump forwards fan-out deliveries to the client and keeps the
// connection alive with pings.
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case evt := <-s.sink.Events():
			switch e := evt.(type) {
			case event.SanitizedMessage:
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.conn.WriteJSON(toChatEvent(e)); err != nil {
					s.log.Debug("Write failed", "session", s.id, "error", err)
					return
				}
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
