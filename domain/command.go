package domain

import (
	"time"
)

type Command interface {
	RoomID() RoomID
}

// SendMessageCommand carries one message sending intent. The sender fields
// come from the session principal, never from the raw client payload.
type SendMessageCommand struct {
	Room       RoomID
	SenderID   string
	SenderName string
	Content    string
	CreatedAt  time.Time
}

func (c SendMessageCommand) RoomID() RoomID {
	return c.Room
}
