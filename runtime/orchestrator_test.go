package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"direct-chat/domain"
	"direct-chat/domain/event"
	"direct-chat/errors"
	"direct-chat/mocks"
	"direct-chat/moderation"
	"direct-chat/repositories"
	"direct-chat/runtime/workers"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testModerator(t *testing.T) *moderation.Moderator {
	t.Helper()
	moderator, err := moderation.NewModerator([]string{"idiot"}, '*')
	require.NoError(t, err)
	return &moderator
}

func newTestOrchestrator(t *testing.T, messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository) (*Orchestrator, *Registry) {
	t.Helper()
	log := slog.Default()
	registry := NewRegistry()
	orchestrator := NewOrchestrator(log, workers.NewSupervisor(log), registry,
		messages, rooms, testModerator(t), 16, time.Second)
	return orchestrator, registry
}

func TestOrchestrator_PostMessageDeliversToBothSessions(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockRooms := mocks.NewMockIRoomRepository(ctrl)
	orchestrator, registry := newTestOrchestrator(t, mockMessages, mockRooms)

	key := domain.RoomKey("alice_bob")
	mockMessages.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)
	mockRooms.EXPECT().Touch(key, gomock.Any()).Return(nil).Times(1)

	// Given both participants connected, sender included
	var wg sync.WaitGroup
	wg.Add(2)
	for _, sessionID := range []string{"alice-session", "bob-session"} {
		sink := mocks.NewMockEventSink(ctrl)
		sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
			Do(func(ctx context.Context, e event.DomainEvent) {
				wg.Done()
			}).Return(nil).Times(1)
		registry.Subscribe(sessionID, key, sink)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(orchestrator.Stop)

	// When a message is posted
	err := orchestrator.PostMessage(ctx, domain.PostMessageCommand{
		RoomKey: key, Sender: "alice", Recipient: "bob", Content: "hello bob",
	})
	req.NoError(err)

	// Then both sessions receive the broadcast
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: broadcast never reached both sessions")
	}
}

func TestOrchestrator_BlankMessageDropped(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockRooms := mocks.NewMockIRoomRepository(ctrl)
	orchestrator, _ := newTestOrchestrator(t, mockMessages, mockRooms)

	// Storage must never be touched
	mockMessages.EXPECT().StoreMessage(gomock.Any()).Times(0)

	err := orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		RoomKey: "alice_bob", Sender: "alice", Recipient: "bob", Content: "   \t  ",
	})
	req.NoError(err)
}

func TestOrchestrator_StorageFailurePropagatesAndSuppressesBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockRooms := mocks.NewMockIRoomRepository(ctrl)
	orchestrator, registry := newTestOrchestrator(t, mockMessages, mockRooms)

	key := domain.RoomKey("alice_bob")
	mockMessages.EXPECT().StoreMessage(gomock.Any()).
		Return(errors.ErrStorageUnavailable).Times(1)

	// Given a connected session that must never see the failed message
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)
	registry.Subscribe("alice-session", key, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(orchestrator.Stop)

	// When the append fails
	err := orchestrator.PostMessage(ctx, domain.PostMessageCommand{
		RoomKey: key, Sender: "alice", Recipient: "bob", Content: "doomed",
	})

	// Then the error reaches the caller and no event was emitted
	req.ErrorIs(err, errors.ErrStorageUnavailable)

	// Give the fan-out a moment to prove it stays silent
	time.Sleep(100 * time.Millisecond)
}

func TestOrchestrator_CensorsBeforeStore(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockRooms := mocks.NewMockIRoomRepository(ctrl)
	orchestrator, _ := newTestOrchestrator(t, mockMessages, mockRooms)

	key := domain.RoomKey("alice_bob")
	var stored repositories.DiskMessage
	mockMessages.EXPECT().StoreMessage(gomock.Any()).
		Do(func(message repositories.DiskMessage) {
			stored = message
		}).Return(nil).Times(1)
	mockRooms.EXPECT().Touch(key, gomock.Any()).Return(nil).Times(1)

	err := orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		RoomKey: key, Sender: "alice", Recipient: "bob", Content: "you idiot",
	})
	req.NoError(err)

	// The durable copy already carries the masked body
	req.Equal("you *****", stored.Content)
	req.Equal("alice", stored.Sender)
	req.False(stored.At.IsZero())
}

func TestOrchestrator_JoinRoomCreatesAndSubscribes(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockRooms := mocks.NewMockIRoomRepository(ctrl)
	orchestrator, registry := newTestOrchestrator(t, mockMessages, mockRooms)

	key := domain.RoomKey("alice_bob")
	mockRooms.EXPECT().GetOrCreate(key, gomock.Any()).
		Return(domain.Room{Key: key}, nil).Times(1)

	room, err := orchestrator.JoinRoom("alice-session", key, mocks.NewMockEventSink(ctrl))
	req.NoError(err)
	req.Equal(key, room.Key)
	req.Len(registry.SinksForRoom(key), 1)
}
