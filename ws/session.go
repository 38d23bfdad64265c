package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edu-relay/contract"
	"edu-relay/domain"
	"edu-relay/domain/event"
	"edu-relay/errors"
	"edu-relay/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Session is the live connection state for one connected client. It owns a
// buffered send queue drained by the write pump; the relay side only ever
// touches the queue, so a slow or dead connection never blocks a fan-out.
type Session struct {
	ID        string
	principal domain.Participant
	conn      *websocket.Conn
	send      chan []byte
	log       *slog.Logger
	service   services.IChatService
	validate  *validator.Validate
	cancel    context.CancelFunc

	mu      sync.Mutex
	cursors map[domain.RoomID]uint64 // delivery cursor, diagnostics only
}

func NewSession(principal domain.Participant, conn *websocket.Conn,
	service services.IChatService, validate *validator.Validate,
	log *slog.Logger, bufferSize int) *Session {
	return &Session{
		ID:        principal.ID,
		principal: principal,
		conn:      conn,
		send:      make(chan []byte, bufferSize),
		log:       log,
		service:   service,
		validate:  validate,
		cursors:   make(map[domain.RoomID]uint64),
	}
}

// Consume implements contract.EventSink. It never blocks: when the send
// queue is full the event is dropped for this session only (best-effort
// delivery) and the fan-out proceeds to the remaining members.
func (s *Session) Consume(_ context.Context, e event.DomainEvent) error {
	frame, err := s.encode(e)
	if err != nil {
		return err
	}
	if frame == nil {
		return nil
	}

	select {
	case s.send <- frame:
		s.advanceCursor(e)
		return nil
	default:
		return fmt.Errorf("%w: send queue full for %s", errors.ErrSessionGone, s.ID)
	}
}

func (s *Session) encode(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.MessageBroadcast:
		return encodeEnvelope(EventReceiveMessage, toMessageDTO(evt.Message))
	case event.HistoryLoaded:
		return encodeEnvelope(EventLoadMessages, toMessageDTOs(evt.Messages))
	case event.ReplayFailed:
		return encodeEnvelope(EventError, ErrorPayload{
			Code:    "replay_failed",
			Message: evt.Reason,
		})
	default:
		return nil, nil
	}
}

func (s *Session) advanceCursor(e event.DomainEvent) {
	if _, ok := e.(event.MessageBroadcast); !ok {
		return
	}
	s.mu.Lock()
	s.cursors[e.RoomID()]++
	s.mu.Unlock()
}

// CursorFor reports how many live messages were queued for a room.
func (s *Session) CursorFor(roomID domain.RoomID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[roomID]
}

// readPump consumes inbound frames until the connection dies, then removes
// every room membership so no dangling references remain.
func (s *Session) readPump(ctx context.Context) {
	defer func() {
		s.service.Disconnect(s.ID)
		s.cancel()
		_ = s.conn.Close()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.log.Warn("Unexpected websocket error", "session_id", s.ID, "error", err)
			}
			return
		}
		s.dispatch(ctx, raw)
	}
}

// dispatch validates one inbound envelope and routes it. Errors are reported
// to this session only; other members of the room are unaffected and unaware.
func (s *Session) dispatch(ctx context.Context, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.sendError("invalid_payload", "malformed frame")
		return
	}

	switch envelope.Event {
	case EventJoinRoom:
		s.handleJoin(ctx, envelope.Data)
	case EventLeaveRoom:
		s.handleLeave(envelope.Data)
	case EventSendMessage:
		s.handleSend(ctx, envelope.Data)
	default:
		s.sendError("unknown_event", fmt.Sprintf("unsupported event %q", envelope.Event))
	}
}

func (s *Session) handleJoin(ctx context.Context, data json.RawMessage) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError("invalid_payload", "malformed joinRoom payload")
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		s.sendError("invalid_payload", err.Error())
		return
	}
	s.service.JoinRoom(ctx, s.ID, domain.RoomID(payload.RoomID), payload.RoomName, s)
}

func (s *Session) handleLeave(data json.RawMessage) {
	var payload LeaveRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError("invalid_payload", "malformed leaveRoom payload")
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		s.sendError("invalid_payload", err.Error())
		return
	}
	s.service.LeaveRoom(s.ID, domain.RoomID(payload.RoomID))
}

func (s *Session) handleSend(ctx context.Context, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError("invalid_payload", "malformed sendMessage payload")
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		s.sendError("invalid_payload", err.Error())
		return
	}

	// Sender identity is bound to the session principal: a caller-supplied
	// senderId that disagrees with it is rejected, never trusted.
	if payload.SenderID != "" && payload.SenderID != s.principal.ID {
		s.sendError("invalid_payload", errors.ErrSenderMismatch.Error())
		return
	}

	cmd := domain.SendMessageCommand{
		Room:       domain.RoomID(payload.RoomID),
		SenderID:   s.principal.ID,
		SenderName: s.senderName(payload.SenderName),
		CreatedAt:  time.Now().UTC(),
		Content:    payload.Text,
	}

	if _, err := s.service.SendMessage(ctx, cmd); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrValidation):
			s.sendError("invalid_payload", err.Error())
		case stderrors.Is(err, errors.ErrStoreUnavailable):
			s.sendError("store_unavailable", "message not delivered, try again")
		default:
			s.log.Error("Send failed", "session_id", s.ID, "error", err)
			s.sendError("internal", "message not delivered")
		}
	}
}

// senderName prefers the authenticated display name; guests name themselves
// per message.
func (s *Session) senderName(supplied string) string {
	if !s.principal.Guest && s.principal.DisplayName != "" {
		return s.principal.DisplayName
	}
	if supplied != "" {
		return supplied
	}
	return "anonymous"
}

func (s *Session) sendError(code, message string) {
	frame, err := encodeEnvelope(EventError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	select {
	case s.send <- frame:
	default:
	}
}

// writePump drains the send queue onto the connection and keeps it alive
// with pings. It owns all writes; nothing else touches the connection.
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ contract.EventSink = (*Session)(nil)
