// Package runtime handles message propagation: joins, history replay, and
// broadcast fan-out. It orchestrates the system without containing domain
// rules beyond the relay's ordering and delivery guarantees.
package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"edu-relay/contract"
	"edu-relay/domain"
	"edu-relay/domain/event"
	"edu-relay/errors"
	"edu-relay/moderation"
	"edu-relay/projection"
	"edu-relay/repositories"
	"edu-relay/runtime/workers"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

//go:embed censored/*
var censoredFolder embed.FS

type Relay struct {
	mu              sync.Mutex
	log             *slog.Logger
	rooms           map[domain.RoomID]*domain.Room
	permanentSinks  []contract.EventSink
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	messages        repositories.IMessageRepository
	moderator       moderation.Moderator
	domainEvents    chan event.DomainEvent
	telemetryEvents chan event.DomainEvent
	historyLimit    int
	sinkTimeout     time.Duration
	metricInterval  time.Duration
	charReplacement rune
}

func NewRelay(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, messages repositories.IMessageRepository,
	bufferSize, historyLimit int, sinkTimeout, metricInterval time.Duration,
	charReplacement rune) *Relay {
	return &Relay{
		log:             log,
		rooms:           make(map[domain.RoomID]*domain.Room),
		supervisor:      supervisor,
		registry:        registry,
		messages:        messages,
		domainEvents:    make(chan event.DomainEvent, bufferSize),
		telemetryEvents: make(chan event.DomainEvent, bufferSize),
		historyLimit:    historyLimit,
		sinkTimeout:     sinkTimeout,
		metricInterval:  metricInterval,
		charReplacement: charReplacement,
	}
}

// Start prepares the moderation automaton and the fan-out pipeline, then
// hands all workers to the supervisor. Heavy work (loading embedded files,
// building the Aho-Corasick machine) happens before the short critical
// section that mutates internal state.
func (r *Relay) Start(ctx context.Context) error {
	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll("censored")
	if err != nil {
		return err
	}
	r.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))

	moderator, err := moderation.NewModerator(data.Words, r.charReplacement, r.log)
	if err != nil {
		return err
	}

	newSinks := []contract.EventSink{projection.NewTimeline()}
	fanout := workers.NewEventFanout(r.log, r.registry,
		append(append([]contract.EventSink{}, r.permanentSinks...), newSinks...),
		r.domainEvents, r.telemetryEvents, r.sinkTimeout)
	health := workers.NewHealthMonitoringWorker(r.log, r.telemetryEvents, r.metricInterval)

	r.mu.Lock()
	r.moderator = moderator
	r.permanentSinks = append(r.permanentSinks, newSinks...)
	r.supervisor.Add(fanout, health)
	r.mu.Unlock()

	r.log.Info("Starting relay and all supervised workers")
	go r.supervisor.Run(ctx)
	return nil
}

// AddSinks registers permanent sinks that observe every broadcast.
// Must be called before Start.
func (r *Relay) AddSinks(sinks ...contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permanentSinks = append(r.permanentSinks, sinks...)
}

// Join registers the session in the room, then asynchronously replays the
// most recent history to that session only. Membership is registered before
// the history read is issued; the replay gate deduplicates by message id, so
// a message appended during the read is delivered exactly once, with no gaps
// across the join boundary.
func (r *Relay) Join(ctx context.Context, sessionID string, roomID domain.RoomID, roomName string, sink contract.EventSink) {
	r.ensureRoom(roomID, roomName)

	gate := newReplayGate(sink)
	if !r.registry.Subscribe(sessionID, roomID, gate) {
		r.log.Debug("Session already joined, ignoring", "session_id", sessionID, "room_id", roomID)
		return
	}

	go r.replay(ctx, roomID, sink, gate)
}

func (r *Relay) replay(ctx context.Context, roomID domain.RoomID, sink contract.EventSink, gate *replayGate) {
	disk, err := r.messages.Recent(string(roomID), r.historyLimit)
	if err != nil {
		r.log.Warn("History replay failed", "room_id", roomID, "error", err)
		_ = sink.Consume(ctx, event.ReplayFailed{Room: roomID, Reason: "history unavailable"})
		gate.Open(ctx, nil)
		return
	}

	batch := event.HistoryLoaded{Room: roomID, Messages: fromDiskMessages(disk)}
	if err := sink.Consume(ctx, batch); err != nil {
		r.log.Debug("Joining session vanished before replay", "room_id", roomID, "error", err)
	}
	gate.Open(ctx, batch.MessageIDs())
}

// Leave removes one room membership.
func (r *Relay) Leave(sessionID string, roomID domain.RoomID) {
	r.registry.Unsubscribe(sessionID, roomID)
}

// Disconnect removes the session from every room it joined.
func (r *Relay) Disconnect(sessionID string) {
	r.registry.UnsubscribeAll(sessionID)
}

// Send validates, censors, persists, then enqueues the broadcast.
// Persistence strictly precedes broadcast: a message that did not durably
// persist is never fanned out, and a store failure is reported to the sender
// only. The returned message carries the server-assigned id and ordering key.
func (r *Relay) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return domain.Message{}, fmt.Errorf("%w: empty message text", errors.ErrValidation)
	}

	sanitized, censored := r.moderator.Censor(content)
	if len(censored) > 0 {
		info := whatlanggo.Detect(content)
		r.log.Warn("Message censored",
			"room_id", cmd.Room,
			"sender_id", cmd.SenderID,
			"lang", info.Lang.Iso6391(),
			"words", len(censored))
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	message := domain.Message{
		ID:         uuid.New(),
		Room:       cmd.Room,
		SenderID:   cmd.SenderID,
		SenderName: cmd.SenderName,
		Content:    sanitized,
		CreatedAt:  createdAt,
	}

	if err := r.messages.StoreMessage(toDiskMessage(message)); err != nil {
		return domain.Message{}, err
	}

	select {
	case r.domainEvents <- event.MessageBroadcast{Message: message}:
	case <-ctx.Done():
		// Persisted but the sender vanished before the broadcast was
		// enqueued; members will still see it via replay.
		r.log.Warn("Broadcast enqueue aborted", "room_id", cmd.Room, "message_id", message.ID)
		return message, ctx.Err()
	}
	return message, nil
}

// Rooms returns a snapshot of room metadata known to this process.
func (r *Relay) Rooms() []domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(lo.Values(r.rooms), func(room *domain.Room, _ int) domain.Room {
		return *room
	})
}

// History exposes the cursor-paginated read path, newest-first.
func (r *Relay) History(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	disk, next, err := r.messages.GetMessages(string(roomID), cursor)
	if err != nil {
		return nil, nil, err
	}
	return fromDiskMessages(disk), next, nil
}

func (r *Relay) ensureRoom(roomID domain.RoomID, name string) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		return room
	}
	room := domain.NewRoom(roomID, name)
	r.rooms[roomID] = room
	r.log.Info("Room created", "room_id", roomID, "name", room.Name)
	return room
}

// Stop initiates a graceful shutdown by cancelling the supervised workers.
func (r *Relay) Stop() {
	r.log.Info("Requesting relay shutdown")
	r.supervisor.Stop()
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:         item.ID,
			Room:       domain.RoomID(item.Room),
			SenderID:   item.Author,
			SenderName: item.AuthorName,
			Content:    item.Content,
			CreatedAt:  item.At,
		}
	})
}

func toDiskMessage(message domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:         message.ID,
		Room:       string(message.Room),
		Author:     message.SenderID,
		AuthorName: message.SenderName,
		Content:    message.Content,
		At:         message.CreatedAt,
	}
}
