// Package runtime handles event production, propagation, and group
// membership. It orchestrates the system without containing business
// logic or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"talk-hub/contract"
	"talk-hub/domain"
	"talk-hub/domain/event"
	apperrors "talk-hub/errors"
	"talk-hub/repositories"
	"talk-hub/runtime/workers"
)

type Orchestrator struct {
	mu                sync.Mutex
	log               *slog.Logger
	groups            map[string]domain.Group
	permanentSinks    []contract.EventSink
	supervisor        contract.ISupervisor
	registry          *Registry
	domainEvents      chan event.DomainEvent
	telemetryEvents   chan event.DomainEvent
	messageRepository repositories.IMessageRepository
	limitMessages     *int
	metricInterval    time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor,
	registry *Registry, messageRepository repositories.IMessageRepository,
	bufferSize int, limitMessages *int, metricInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:               log,
		groups:            make(map[string]domain.Group),
		permanentSinks:    nil,
		supervisor:        supervisor,
		registry:          registry,
		domainEvents:      make(chan event.DomainEvent, bufferSize),
		telemetryEvents:   make(chan event.DomainEvent, bufferSize),
		messageRepository: messageRepository,
		limitMessages:     limitMessages,
		metricInterval:    metricInterval,
	}
}

// EnsureGroup registers a group identity. Idempotent: a known id is left
// untouched. Group identities persist for the process lifetime even when
// their membership drops to zero.
func (o *Orchestrator) EnsureGroup(group domain.Group) domain.Group {
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.groups[group.ID]; ok {
		return existing
	}
	o.groups[group.ID] = group
	return group
}

// Add appends permanent sinks receiving every fanned-out event,
// regardless of group membership (projections, telemetry).
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// PostMessage appends a message to its group's log, then dispatches a
// MessagePosted event for fan-out to live members. The append is
// synchronous so a history read issued right after always sees the
// message; only the broadcast is asynchronous.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	if cmd.GroupID == "" {
		return domain.Message{}, apperrors.ErrMissingGroupID
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	message := domain.Message{
		ID:        uuid.New(),
		GroupID:   cmd.GroupID,
		Sender:    cmd.Sender,
		Body:      cmd.Body,
		CreatedAt: createdAt,
	}

	if err := o.messageRepository.StoreMessage(toDiskMessage(message)); err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}

	evt := event.MessagePosted{
		ID:      message.ID,
		GroupID: message.GroupID,
		Sender:  message.Sender,
		Body:    message.Body,
		At:      message.CreatedAt,
	}

	// The append already succeeded, so the message is part of the history
	// no matter what happens to the broadcast. A full event channel only
	// drops the fan-out, never the message.
	select {
	case o.domainEvents <- evt:
	default:
		o.log.Warn(fmt.Sprintf("Event channel full for group %s, dropping broadcast", cmd.GroupID))
	}

	return message, nil
}

// GetMessages returns the ordered history of one group. Unknown groups
// yield an empty history, not an error.
func (o *Orchestrator) GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, error) {
	limit := cmd.Limit
	if limit == nil {
		limit = o.limitMessages
	}
	messages, err := o.messageRepository.GetMessages(cmd.GroupID, limit)
	if err != nil {
		return nil, err
	}
	return fromDiskMessages(messages), nil
}

func (o *Orchestrator) RegisterParticipant(connID string, groupID string, sink contract.EventSink) {
	o.registry.Subscribe(connID, groupID, sink)
}

// UnregisterParticipant removes a connection from one group.
func (o *Orchestrator) UnregisterParticipant(connID string, groupID string) {
	o.registry.Unsubscribe(connID, groupID)
}

// UnregisterAll disconnects a connection from every group it had joined.
func (o *Orchestrator) UnregisterAll(connID string) {
	o.registry.UnsubscribeAll(connID)
}

// Start registers the fanout and telemetry workers with the supervisor
// and runs them until ctx is canceled.
func (o *Orchestrator) Start(ctx context.Context) error {
	fanout := workers.NewEventFanout(o.log, o.registry, o.domainEvents, o.telemetryEvents)

	o.mu.Lock()
	fanout.Add(o.permanentSinks...)
	o.supervisor.Add(fanout)
	o.supervisor.Add(workers.NewTelemetry(o.log, o.registry.Counts, o.telemetryEvents, o.metricInterval))
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown by canceling the supervision context.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

func toDiskMessage(message domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:      message.ID,
		GroupID: message.GroupID,
		Sender:  message.Sender,
		Body:    message.Body,
		At:      message.CreatedAt,
	}
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        item.ID,
			GroupID:   item.GroupID,
			Sender:    item.Sender,
			Body:      item.Body,
			CreatedAt: item.At,
		}
	})
}
