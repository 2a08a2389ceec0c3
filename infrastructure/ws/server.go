// Package ws is the websocket transport for private rooms: one
// connection per chat pair, authenticated by the identity provider's
// token, addressed by the peer's display name in the URL path.
package ws

import (
	"context"
	"log/slog"
	"net/http"

	"direct-chat/domain"
	"direct-chat/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type tokenValidator interface {
	Validate(token string) (string, error)
}

type Server struct {
	log        *slog.Logger
	chat       services.IChatService
	tokens     tokenValidator
	baseCtx    context.Context
	sendBuffer int
}

func NewServer(ctx context.Context, log *slog.Logger, chat services.IChatService,
	tokens tokenValidator, sendBuffer int) *Server {
	return &Server{
		log:        log,
		chat:       chat,
		tokens:     tokens,
		baseCtx:    ctx,
		sendBuffer: sendBuffer,
	}
}

// Register installs the chat endpoint on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/chat/{peer}", s.HandleChat)
}

// HandleChat upgrades the connection and runs the session until
// disconnect. The local identity comes from the already-authenticated
// token; the peer comes from the path. The core never authenticates
// itself.
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if cookie, err := r.Cookie("token"); err == nil {
			token = cookie.Value
		}
	}

	username, err := s.tokens.Validate(token)
	if err != nil {
		s.log.Warn("Unauthorized websocket connection attempt", "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	peer := r.PathValue("peer")
	if peer == "" {
		http.Error(w, "missing peer", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Websocket upgrade failed", "error", err)
		return
	}

	session := NewSession(
		uuid.NewString(),
		domain.Identity(username),
		domain.Identity(peer),
		conn,
		NewSink(s.sendBuffer),
		s.chat,
		s.log,
	)

	s.log.Info("Websocket connection established",
		"session", session.id, "local", username, "peer", peer)

	// Blocks for the lifetime of the connection; the handler owns the
	// hijacked socket anyway.
	session.Run(s.baseCtx)
}
