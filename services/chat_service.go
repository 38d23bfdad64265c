package services

import (
	"context"

	"edu-relay/contract"
	"edu-relay/domain"
)

type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	History(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	Rooms() []domain.Room
	JoinRoom(ctx context.Context, sessionID string, roomID domain.RoomID, roomName string, sink contract.EventSink)
	LeaveRoom(sessionID string, roomID domain.RoomID)
	Disconnect(sessionID string)
}

type ChatService struct {
	relay contract.IRelay
}

func NewChatService(relay contract.IRelay) *ChatService {
	return &ChatService{relay: relay}
}

func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.relay.Send(ctx, cmd)
}

func (s *ChatService) History(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	return s.relay.History(roomID, cursor)
}

func (s *ChatService) Rooms() []domain.Room {
	return s.relay.Rooms()
}

func (s *ChatService) JoinRoom(ctx context.Context, sessionID string, roomID domain.RoomID, roomName string, sink contract.EventSink) {
	s.relay.Join(ctx, sessionID, roomID, roomName, sink)
}

func (s *ChatService) LeaveRoom(sessionID string, roomID domain.RoomID) {
	s.relay.Leave(sessionID, roomID)
}

func (s *ChatService) Disconnect(sessionID string) {
	s.relay.Disconnect(sessionID)
}
