// Package ws is the bidirectional event transport for the relay.
// Inbound frames are tagged envelopes validated at the boundary before
// anything reaches the relay core.
package ws

import (
	"encoding/json"
	"time"

	"edu-relay/domain"

	"github.com/samber/lo"
)

const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSendMessage    = "sendMessage"
	EventLoadMessages   = "loadMessages"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// Envelope is the wire frame: the Event tag discriminates the Data shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// The 0x3A exclusion keeps ':' out of room ids, which the store's key scheme
// reserves as a separator.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId" validate:"required,max=128,excludesall=:"`
	RoomName string `json:"roomName" validate:"max=128"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type SendMessagePayload struct {
	RoomID          string     `json:"roomId" validate:"required,max=128,excludesall=:"`
	SenderID        string     `json:"senderId" validate:"max=128"`
	SenderName      string     `json:"senderName" validate:"max=64"`
	Text            string     `json:"text" validate:"required,max=2000"`
	ClientTimestamp *time.Time `json:"clientTimestamp"`
}

type MessageDTO struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toMessageDTO(message domain.Message) MessageDTO {
	return MessageDTO{
		ID:         message.ID.String(),
		RoomID:     string(message.Room),
		SenderID:   message.SenderID,
		SenderName: message.SenderName,
		Text:       message.Content,
		CreatedAt:  message.CreatedAt.UTC(),
	}
}

func toMessageDTOs(messages []domain.Message) []MessageDTO {
	return lo.Map(messages, func(m domain.Message, _ int) MessageDTO {
		return toMessageDTO(m)
	})
}

// encodeEnvelope builds one outbound frame. The replay batch is always a
// non-nil array so clients can treat an empty room uniformly.
func encodeEnvelope(eventName string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: eventName, Data: raw})
}
