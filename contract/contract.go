//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"edu-relay/domain"
	"edu-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events. Implementations must not block:
// a slow or dead consumer never stalls the fan-out to other members.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	SinksForRoom(roomID domain.RoomID) []EventSink
	Subscribe(sessionID string, roomID domain.RoomID, sink EventSink) bool
	Unsubscribe(sessionID string, roomID domain.RoomID)
	UnsubscribeAll(sessionID string)
}

type IRelay interface {
	Join(ctx context.Context, sessionID string, roomID domain.RoomID, roomName string, sink EventSink)
	Leave(sessionID string, roomID domain.RoomID)
	Disconnect(sessionID string)
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	Rooms() []domain.Room
	History(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}
