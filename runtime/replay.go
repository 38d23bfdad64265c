package runtime

import (
	"context"
	"sync"

	"edu-relay/contract"
	"edu-relay/domain/event"

	"github.com/google/uuid"
)

// replayGate wraps a session sink for the duration of a join. Membership is
// registered before the history read is issued, so a message appended while
// the read is in flight reaches this gate as a live broadcast and may also
// appear in the replay batch. The gate buffers live broadcasts until the
// batch has been delivered, then flushes the buffer minus the ids present in
// the batch. Broadcasts arriving after the flush are still checked against
// the batch ids, because the fan-out of a replayed message may land after
// the gate opened. Exactly one copy crosses the join boundary, with no gaps.
type replayGate struct {
	mu       sync.Mutex
	next     contract.EventSink
	open     bool
	buffered []event.MessageBroadcast
	replayed map[uuid.UUID]struct{}
}

func newReplayGate(next contract.EventSink) *replayGate {
	return &replayGate{next: next}
}

func (g *replayGate) Consume(ctx context.Context, e event.DomainEvent) error {
	g.mu.Lock()
	if broadcast, ok := e.(event.MessageBroadcast); ok {
		if !g.open {
			g.buffered = append(g.buffered, broadcast)
			g.mu.Unlock()
			return nil
		}
		if _, dup := g.replayed[broadcast.Message.ID]; dup {
			// Already delivered in the replay batch; a broadcast is
			// emitted once, so the id can be forgotten now.
			delete(g.replayed, broadcast.Message.ID)
			g.mu.Unlock()
			return nil
		}
	}
	g.mu.Unlock()
	return g.next.Consume(ctx, e)
}

// Open flushes buffered broadcasts not covered by the replay batch and lets
// everything through from then on. The flush happens under the lock so a
// concurrent broadcast cannot overtake a buffered one; sinks are non-blocking
// by contract, which keeps the critical section short.
func (g *replayGate) Open(ctx context.Context, replayed map[uuid.UUID]struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return
	}
	for _, broadcast := range g.buffered {
		if _, dup := replayed[broadcast.Message.ID]; dup {
			delete(replayed, broadcast.Message.ID)
			continue
		}
		_ = g.next.Consume(ctx, broadcast)
	}
	g.buffered = nil
	g.replayed = replayed
	g.open = true
}
