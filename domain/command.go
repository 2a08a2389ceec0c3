package domain

type Command interface {
	Room() RoomKey
}

// PostMessageCommand carries one inbound message intent from a session.
// The creation timestamp is not part of the command: the store assigns
// it at persistence time.
type PostMessageCommand struct {
	RoomKey   RoomKey
	Sender    Identity
	Recipient Identity
	Content   string
}

func (c PostMessageCommand) Room() RoomKey {
	return c.RoomKey
}

// HistoryCommand requests the full ordered replay of a room.
type HistoryCommand struct {
	RoomKey RoomKey
}

func (c HistoryCommand) Room() RoomKey {
	return c.RoomKey
}
