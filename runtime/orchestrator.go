// Package runtime wires presence, persistence, moderation, and fan-out
// together. It orchestrates the system without containing domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/domain/event"
	"direct-chat/moderation"
	"direct-chat/repositories"
	"direct-chat/runtime/workers"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Orchestrator struct {
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	messages       repositories.IMessageRepository
	rooms          repositories.IRoomRepository
	moderator      *moderation.Moderator
	domainEvents   chan event.DomainEvent
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository, moderator *moderation.Moderator,
	bufferSize int, sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:          log,
		supervisor:   supervisor,
		registry:     registry,
		messages:     messages,
		rooms:        rooms,
		moderator:    moderator,
		domainEvents: make(chan event.DomainEvent, bufferSize),
		sinkTimeout:  sinkTimeout,
	}
}

// AddSinks registers permanent sinks (search index, projections) that
// observe every broadcast event alongside the connected sessions.
func (o *Orchestrator) AddSinks(sinks ...contract.EventSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// JoinRoom creates the room on first contact and registers the session's
// delivery channel under the room key.
func (o *Orchestrator) JoinRoom(sessionID string, key domain.RoomKey, sink contract.EventSink) (domain.Room, error) {
	room, err := o.rooms.GetOrCreate(key, time.Now().UTC())
	if err != nil {
		return domain.Room{}, err
	}
	o.registry.Subscribe(sessionID, key, sink)
	return room, nil
}

// LeaveRoom disconnects a session. Safe to call on sessions that never
// fully joined.
func (o *Orchestrator) LeaveRoom(sessionID string, key domain.RoomKey) {
	o.registry.Unsubscribe(sessionID, key)
}

// History replays every stored message of the room, ascending by
// creation time.
func (o *Orchestrator) History(key domain.RoomKey) ([]domain.Message, error) {
	diskMessages, err := o.messages.History(key)
	if err != nil {
		return nil, err
	}
	return fromDiskMessages(diskMessages), nil
}

// PostMessage runs the write pipeline for one inbound message: censor,
// persist, then broadcast. The append is sequenced strictly before the
// broadcast; a storage failure propagates to the caller and no event is
// emitted, so a reader can never observe a broadcast for a message that
// was not durably stored.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		// Blank messages are dropped, not errors.
		return nil
	}

	verdict := o.moderator.Review(content)
	if len(verdict.CensoredWords) > 0 {
		o.log.Info("Message censored",
			"room", cmd.RoomKey,
			"sender", cmd.Sender,
			"words", len(verdict.CensoredWords),
			"lang", verdict.Lang)
	}

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    cmd.Sender,
		Recipient: cmd.Recipient,
		Room:      cmd.RoomKey,
		Content:   verdict.Clean,
		CreatedAt: time.Now().UTC(),
	}

	if err := o.messages.StoreMessage(toDiskMessage(message)); err != nil {
		return fmt.Errorf("append failed for room %s: %w", cmd.RoomKey, err)
	}

	// Last-activity tracking is best effort: the message is already
	// durable, so a failure here must not fail the send.
	if err := o.rooms.Touch(cmd.RoomKey, message.CreatedAt); err != nil {
		o.log.Warn("Failed to touch room", "room", cmd.RoomKey, "error", err)
	}

	evt := event.SanitizedMessage{
		ID:            message.ID,
		RoomKey:       message.Room,
		Sender:        message.Sender,
		Content:       message.Content,
		Lang:          verdict.Lang,
		CensoredWords: verdict.CensoredWords,
		At:            message.CreatedAt,
	}
	select {
	case o.domainEvents <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start registers the fan-out worker and launches the supervision loop.
// Non-blocking; Stop triggers the shutdown.
func (o *Orchestrator) Start(ctx context.Context) error {
	fanout := workers.NewEventFanout(o.log, o.registry, o.permanentSinks,
		o.domainEvents, o.sinkTimeout)
	o.supervisor.Add(fanout)

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown by canceling the supervision
// context; workers drain and exit.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

func toDiskMessage(m domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:        m.ID,
		Room:      m.Room,
		Sender:    m.Sender.String(),
		Recipient: m.Recipient.String(),
		Content:   m.Content,
		At:        m.CreatedAt,
		IsRead:    m.IsRead,
	}
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        item.ID,
			Sender:    domain.Identity(item.Sender),
			Recipient: domain.Identity(item.Recipient),
			Room:      item.Room,
			Content:   item.Content,
			CreatedAt: item.At,
			IsRead:    item.IsRead,
		}
	})
}
