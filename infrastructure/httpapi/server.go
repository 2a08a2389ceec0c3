// Package httpapi exposes the account and discovery endpoints that sit
// next to the websocket transport: register, login, user listing,
// recent conversations and full-text search.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/services"
)

type tokenValidator interface {
	Validate(token string) (string, error)
}

type Server struct {
	log    *slog.Logger
	auth   services.IAuthService
	chat   services.IChatService
	tokens tokenValidator
}

func NewServer(log *slog.Logger, auth services.IAuthService,
	chat services.IChatService, tokens tokenValidator) *Server {
	return &Server{log: log, auth: auth, chat: chat, tokens: tokens}
}

// Register installs the API routes on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/users", s.authenticated(s.handleUsers))
	mux.HandleFunc("GET /api/chats/recent", s.authenticated(s.handleRecentChats))
	mux.HandleFunc("GET /api/search", s.authenticated(s.handleSearch))
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.auth.Register(req.Username, req.Password)
	if err != nil {
		s.log.Warn("Registration failed", "username", req.Username, "error", err)
		writeError(w, registrationStatus(err), err.Error())
		return
	}

	s.log.Info("User registered", "username", req.Username)
	writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		s.log.Warn("Login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, username string) {
	users, err := s.chat.AvailableUsers(domain.Identity(username))
	if err != nil {
		s.log.Error("Listing users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing users failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleRecentChats(w http.ResponseWriter, r *http.Request, username string) {
	entries := s.chat.RecentChats(domain.Identity(username))
	writeJSON(w, http.StatusOK, map[string]any{"chats": entries})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, username string) {
	rawQuery := r.URL.Query().Get("q")
	if strings.TrimSpace(rawQuery) == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	hits, err := s.chat.SearchMessages(r.Context(), rawQuery)
	if err != nil {
		s.log.Error("Search failed", "query", rawQuery, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, username string)

// authenticated resolves the caller's identity from a bearer token (or
// the token query parameter, which websocket-style clients use) before
// invoking the handler.
func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			token = r.URL.Query().Get("token")
		}

		username, err := s.tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, username)
	}
}

func registrationStatus(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrInvalidUsername), stderrors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
