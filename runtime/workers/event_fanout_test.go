package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"edu-relay/contract"
	"edu-relay/domain"
	"edu-relay/domain/event"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	sinks map[domain.RoomID][]contract.EventSink
}

func (r *fakeRegistry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	return r.sinks[roomID]
}

func (r *fakeRegistry) Subscribe(sessionID string, roomID domain.RoomID, sink contract.EventSink) bool {
	return true
}

func (r *fakeRegistry) Unsubscribe(sessionID string, roomID domain.RoomID) {}
func (r *fakeRegistry) UnsubscribeAll(sessionID string)                    {}

type collectingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *collectingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *collectingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

type blockingSink struct {
	consumed chan error
}

func (s *blockingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	<-ctx.Done() // Waiting for timeout to trigger cancellation
	s.consumed <- ctx.Err()
	return ctx.Err()
}

func TestEventFanout_DeliversToRoomAndPermanentSinks(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	roomID := domain.RoomID("go-101")
	member1 := &collectingSink{}
	member2 := &collectingSink{}
	stranger := &collectingSink{}
	permanent := &collectingSink{}

	registry := &fakeRegistry{sinks: map[domain.RoomID][]contract.EventSink{
		roomID:                  {member1, member2},
		domain.RoomID("maths-2"): {stranger},
	}}

	worker := NewEventFanout(log, registry,
		[]contract.EventSink{permanent}, nil, nil, 1*time.Second)

	evt := event.MessageBroadcast{Message: domain.Message{Room: roomID, Content: "hello"}}

	// When an event is fanned out
	worker.Fanout(context.Background(), evt)

	// Then every room member and permanent sink got it once
	req.Equal([]event.DomainEvent{evt}, member1.Events())
	req.Equal([]event.DomainEvent{evt}, member2.Events())
	req.Equal([]event.DomainEvent{evt}, permanent.Events())

	// And members of other rooms got nothing
	req.Empty(stranger.Events())
}

func TestEventFanout_SlowSinkDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	roomID := domain.RoomID("go-101")
	slow := &blockingSink{consumed: make(chan error, 1)}
	healthy := &collectingSink{}

	registry := &fakeRegistry{sinks: map[domain.RoomID][]contract.EventSink{
		roomID: {slow, healthy},
	}}

	worker := NewEventFanout(log, registry, nil, nil, nil, 20*time.Millisecond)

	evt := event.MessageBroadcast{Message: domain.Message{Room: roomID, Content: "hello"}}

	// When an event is fanned out with a blocked member
	worker.Fanout(context.Background(), evt)

	// Then the slow sink was cut off by the timeout
	select {
	case err := <-slow.consumed:
		req.ErrorIs(err, context.DeadlineExceeded)
	case <-time.After(1 * time.Second):
		req.Fail("Slow sink was never released")
	}

	// And the healthy sink still got the event
	req.Equal([]event.DomainEvent{evt}, healthy.Events())
}

func TestEventFanout_Run_ConsumesUntilCanceled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	roomID := domain.RoomID("go-101")
	member := &collectingSink{}
	registry := &fakeRegistry{sinks: map[domain.RoomID][]contract.EventSink{
		roomID: {member},
	}}

	domainEvents := make(chan event.DomainEvent, 1)
	telemetryEvents := make(chan event.DomainEvent, 1)
	worker := NewEventFanout(log, registry, nil, domainEvents, telemetryEvents, 1*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	evt := event.MessageBroadcast{Message: domain.Message{Room: roomID, Content: "hello"}}
	domainEvents <- evt

	// Then the event reaches the room and the telemetry channel
	select {
	case forwarded := <-telemetryEvents:
		req.Equal(evt, forwarded)
	case <-time.After(1 * time.Second):
		req.Fail("Telemetry event was never forwarded")
	}
	req.Equal([]event.DomainEvent{evt}, member.Events())

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		req.Fail("Worker did not stop on context cancellation")
	}
}
