package workers

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"talk-hub/contract"
	"talk-hub/domain/event"
	"talk-hub/mocks"
)

func posted(groupID string) event.MessagePosted {
	return event.MessagePosted{
		ID:      uuid.New(),
		GroupID: groupID,
		Sender:  "alice",
		Body:    "hi",
		At:      time.Now().UTC(),
	}
}

func TestEventFanout_DeliversToGroupMembers(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	evt := posted("bigGroup")

	member := mocks.NewMockEventSink(ctrl)
	member.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().SinksFor("bigGroup").Return([]contract.EventSink{member}).Times(1)

	fanout := NewEventFanout(log, registry, nil, make(chan event.DomainEvent, 1))
	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_PartialDeliveryIsTolerated(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	evt := posted("bigGroup")

	// Given the first member fails
	failing := mocks.NewMockEventSink(ctrl)
	failing.EXPECT().Consume(gomock.Any(), evt).Return(fmt.Errorf("send buffer full")).Times(1)

	// Then the second member still receives the event
	healthy := mocks.NewMockEventSink(ctrl)
	healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().SinksFor("bigGroup").Return([]contract.EventSink{failing, healthy}).Times(1)

	fanout := NewEventFanout(log, registry, nil, make(chan event.DomainEvent, 1))
	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_PermanentSinksSeeEveryEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	evt := posted("emptyGroup")

	// No member joined, but the permanent sink is still served
	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().SinksFor("emptyGroup").Return(nil).Times(1)

	permanent := mocks.NewMockEventSink(ctrl)
	permanent.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	fanout := NewEventFanout(log, registry, nil, make(chan event.DomainEvent, 1))
	fanout.Add(permanent)
	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_RunDrainsChannelUntilCanceled(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	evt := posted("bigGroup")
	delivered := make(chan struct{})

	member := mocks.NewMockEventSink(ctrl)
	member.EXPECT().
		Consume(gomock.Any(), evt).
		Do(func(ctx context.Context, e event.DomainEvent) { close(delivered) }).
		Return(nil).
		Times(1)

	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().SinksFor("bigGroup").Return([]contract.EventSink{member}).Times(1)

	domainEvents := make(chan event.DomainEvent, 1)
	fanout := NewEventFanout(log, registry, domainEvents, make(chan event.DomainEvent, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fanout.Run(ctx) }()

	// When an event is dispatched
	domainEvents <- evt

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: event has never reached the member sink")
	}

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: fanout worker did not stop")
	}
}
