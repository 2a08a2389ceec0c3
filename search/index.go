// Package search maintains a full-text index over broadcast messages.
// The index is a fan-out sink: it observes the same sanitized events the
// connected sessions receive, so only stored messages are ever indexed.
package search

import (
	"context"
	"log/slog"
	"time"

	"direct-chat/domain"
	"direct-chat/domain/event"

	"github.com/blugelabs/bluge"
)

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Hit is one search result, rebuilt from the stored index fields.
type Hit struct {
	MessageID string
	Room      domain.RoomKey
	Sender    domain.Identity
	Content   string
	At        time.Time
}

func NewMessageIndex(path string, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

// Consume implements the EventSink interface: every sanitized message is
// upserted into the index under its message ID.
func (i *MessageIndex) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.SanitizedMessage)
	if !ok {
		return nil
	}

	doc := bluge.NewDocument(evt.ID.String()).
		AddField(bluge.NewTextField("content", evt.Content).StoreValue()).
		AddField(bluge.NewKeywordField("room", evt.RoomKey.String()).StoreValue()).
		AddField(bluge.NewKeywordField("sender", evt.Sender.String()).StoreValue()).
		AddField(bluge.NewKeywordField("at", evt.At.Format(time.RFC3339Nano)).StoreValue())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		i.log.Error("Failed to index message", "message_id", evt.ID, "error", err)
		return err
	}
	return nil
}

// Search runs a match query over message bodies, optionally restricted
// to a single room, ranked by score.
func (i *MessageIndex) Search(ctx context.Context, query *Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	boolean := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query.Terms).SetField("content"))
	if query.RoomKey != "" {
		boolean.AddMust(bluge.NewTermQuery(query.RoomKey.String()).SetField("room"))
	}

	request := bluge.NewTopNSearch(query.Limit, boolean)
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "room":
				hit.Room = domain.RoomKey(value)
			case "sender":
				hit.Sender = domain.Identity(value)
			case "content":
				hit.Content = string(value)
			case "at":
				if at, err := time.Parse(time.RFC3339Nano, string(value)); err == nil {
					hit.At = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}
