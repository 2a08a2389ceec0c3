//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"

	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/projection"
	"direct-chat/repositories"
	"direct-chat/runtime"
	"direct-chat/search"

	"github.com/samber/lo"
)

type IChatService interface {
	JoinRoom(sessionID string, local, peer domain.Identity, sink contract.EventSink) (domain.Room, error)
	LeaveRoom(sessionID string, key domain.RoomKey)
	History(key domain.RoomKey) ([]domain.Message, error)
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error
	SearchMessages(ctx context.Context, rawQuery string) ([]search.Hit, error)
	RecentChats(user domain.Identity) []projection.Entry
	AvailableUsers(exclude domain.Identity) ([]string, error)
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
	users        repositories.IUserRepository
	index        *search.MessageIndex
	recent       *projection.RecentChats
}

func NewChatService(orchestrator *runtime.Orchestrator, users repositories.IUserRepository,
	index *search.MessageIndex, recent *projection.RecentChats) *ChatService {
	return &ChatService{
		orchestrator: orchestrator,
		users:        users,
		index:        index,
		recent:       recent,
	}
}

// JoinRoom resolves the canonical room key for the pair and registers
// the session under it. The peer must be a registered user: connecting
// to a nonexistent peer is rejected with an explicit error, not a
// confusing empty room.
func (s *ChatService) JoinRoom(sessionID string, local, peer domain.Identity,
	sink contract.EventSink) (domain.Room, error) {
	if _, err := s.users.GetUserByUsername(peer.String()); err != nil {
		return domain.Room{}, fmt.Errorf("peer %q: %w", peer, errors.ErrUnknownPeer)
	}

	key, err := domain.ResolveRoomKey(local, peer)
	if err != nil {
		return domain.Room{}, err
	}
	return s.orchestrator.JoinRoom(sessionID, key, sink)
}

func (s *ChatService) LeaveRoom(sessionID string, key domain.RoomKey) {
	s.orchestrator.LeaveRoom(sessionID, key)
}

func (s *ChatService) History(key domain.RoomKey) ([]domain.Message, error) {
	return s.orchestrator.History(key)
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	return s.orchestrator.PostMessage(ctx, cmd)
}

// SearchMessages parses the raw query ("terms --room key --limit n")
// and runs it against the message index.
func (s *ChatService) SearchMessages(ctx context.Context, rawQuery string) ([]search.Hit, error) {
	return s.index.Search(ctx, search.NewQuery(rawQuery))
}

// RecentChats lists the user's conversations, latest message per peer.
func (s *ChatService) RecentChats(user domain.Identity) []projection.Entry {
	return s.recent.RecentFor(user)
}

// AvailableUsers lists every registered display name except the caller.
func (s *ChatService) AvailableUsers(exclude domain.Identity) ([]string, error) {
	usernames, err := s.users.ListUsernames()
	if err != nil {
		return nil, err
	}
	return lo.Filter(usernames, func(name string, _ int) bool {
		return name != exclude.String()
	}), nil
}
