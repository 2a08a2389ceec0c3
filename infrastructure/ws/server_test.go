package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"direct-chat/auth"
	"direct-chat/moderation"
	"direct-chat/repositories"
	"direct-chat/runtime"
	"direct-chat/runtime/workers"
	"direct-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testStack struct {
	server *httptest.Server
	tokens *auth.TokenManager
	db     *badger.DB
}

// newTestStack boots the full pipeline on a throwaway store: repos,
// moderation, orchestration, and the websocket endpoint.
func newTestStack(t *testing.T, usernames ...string) *testStack {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	users := repositories.NewUserRepository(db)
	for _, name := range usernames {
		_, err := users.CreateUser(name, "irrelevant-hash")
		req.NoError(err)
	}

	moderator, err := moderation.NewModerator([]string{"idiot"}, '*')
	req.NoError(err)

	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log),
		runtime.NewRegistry(), repositories.NewMessageRepository(db, log),
		repositories.NewRoomRepository(db, log), &moderator, 64, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(func() {
		orchestrator.Stop()
		cancel()
	})

	chat := services.NewChatService(orchestrator, users, nil, nil)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	mux := http.NewServeMux()
	NewServer(ctx, log, chat, tokens, 16).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testStack{server: server, tokens: tokens, db: db}
}

// dial opens an authenticated connection as the given user toward the
// given peer.
func (s *testStack) dial(t *testing.T, username, peer string) *websocket.Conn {
	t.Helper()
	token, err := s.tokens.Generate(username, []string{"user"})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") +
		"/ws/chat/" + peer + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	return conn
}

func readHistory(t *testing.T, conn *websocket.Conn) historyEvent {
	t.Helper()
	var frame historyEvent
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "history", frame.Type)
	return frame
}

func readChat(t *testing.T, conn *websocket.Conn) chatEvent {
	t.Helper()
	var frame chatEvent
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestServer_RejectsMissingToken(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, "alice", "bob")

	wsURL := "ws" + strings.TrimPrefix(stack.server.URL, "http") + "/ws/chat/bob"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_MessageReachesBothParticipants(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, "alice", "bob")

	// Given both participants connected, each addressing the other
	alice := stack.dial(t, "alice", "bob")
	bob := stack.dial(t, "bob", "alice")

	// Then each first sees an empty history replay
	req.Empty(readHistory(t, alice).Messages)
	req.Empty(readHistory(t, bob).Messages)

	// When alice posts a message
	req.NoError(alice.WriteJSON(map[string]string{"message": "hi bob"}))

	// Then both sessions receive the same broadcast, sender included
	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readChat(t, conn)
		req.Equal("alice", frame.Sender)
		req.Equal("hi bob", frame.Message)
		req.NotEmpty(frame.Timestamp)
	}
}

func TestServer_HistoryReplayOnReconnect(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, "alice", "bob")

	alice := stack.dial(t, "alice", "bob")
	req.Empty(readHistory(t, alice).Messages)

	req.NoError(alice.WriteJSON(map[string]string{"message": "remember this"}))
	readChat(t, alice)
	req.NoError(alice.Close())

	// A later session of either participant replays the stored past
	bob := stack.dial(t, "bob", "alice")
	history := readHistory(t, bob)
	req.Len(history.Messages, 1)
	req.Equal("alice", history.Messages[0].Sender)
	req.Equal("remember this", history.Messages[0].Content)
	req.NotEmpty(history.Messages[0].Timestamp)
}

func TestServer_UnknownPeerIsRejectedWithCloseFrame(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, "alice")

	conn := stack.dial(t, "alice", "ghost")

	// The server answers with an explicit close frame, not silence
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	req.ErrorAs(err, &closeErr)
	req.Equal(websocket.ClosePolicyViolation, closeErr.Code)
}

func TestServer_MalformedAndBlankPayloadsAreDropped(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, "alice", "bob")

	alice := stack.dial(t, "alice", "bob")
	req.Empty(readHistory(t, alice).Messages)

	// Given junk and blank payloads
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("not json at all")))
	req.NoError(alice.WriteJSON(map[string]string{"message": "   "}))
	req.NoError(alice.WriteJSON(map[string]string{"wrong": "field"}))

	// When a valid message follows
	req.NoError(alice.WriteJSON(map[string]string{"message": "still alive"}))

	// Then the connection survived and only the valid message flows
	frame := readChat(t, alice)
	req.Equal("still alive", frame.Message)
}

func TestServer_StorageFailureClosesWithInternalError(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, "alice", "bob")

	// Given two live sessions, write pumps running on both ends
	alice := stack.dial(t, "alice", "bob")
	bob := stack.dial(t, "bob", "alice")
	req.Empty(readHistory(t, alice).Messages)
	req.Empty(readHistory(t, bob).Messages)

	req.NoError(alice.WriteJSON(map[string]string{"message": "all good so far"}))
	readChat(t, alice)
	readChat(t, bob)

	// When the store fails underneath the next append
	req.NoError(stack.db.Close())
	req.NoError(alice.WriteJSON(map[string]string{"message": "doomed"}))

	// Then the sender gets an explicit internal-error close frame, not
	// a silent drop and not a broadcast of an unsaved message
	_, _, err := alice.ReadMessage()
	var closeErr *websocket.CloseError
	req.ErrorAs(err, &closeErr)
	req.Equal(websocket.CloseInternalServerErr, closeErr.Code)
}

func TestServer_CensorsBeforeDelivery(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, "alice", "bob")

	alice := stack.dial(t, "alice", "bob")
	req.Empty(readHistory(t, alice).Messages)

	req.NoError(alice.WriteJSON(map[string]string{"message": "you idiot"}))

	frame := readChat(t, alice)
	req.Equal("you *****", frame.Message)
}
