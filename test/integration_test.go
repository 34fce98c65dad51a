package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"talk-hub/domain"
	"talk-hub/domain/event"
	"talk-hub/mocks"
	"talk-hub/projection"
	"talk-hub/repositories"
	"talk-hub/runtime"
	"talk-hub/runtime/workers"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)

	// 1. Create a channel to wait for a signal at the end of the pipeline
	done := make(chan struct{})
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	supervisor := workers.NewSupervisor(log, 200*time.Millisecond)
	registry := runtime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, log)
	orchestrator := runtime.NewOrchestrator(
		log, supervisor, registry, messageRepository,
		10, nil, 3*time.Second,
	)

	ctrl := gomock.NewController(t)
	mockMemberSink := mocks.NewMockEventSink(ctrl)
	mockMemberSink.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		Do(func(ctx context.Context, evt event.DomainEvent) {
			close(done) // Signaling the event has reached the member
		}).
		Return(nil).
		Times(1)

	timeline := projection.NewTimeline()
	orchestrator.Add(timeline)

	group := orchestrator.EnsureGroup(domain.Group{ID: domain.DefaultGroupID, Name: "大群"})
	orchestrator.RegisterParticipant("conn-1", group.ID, mockMemberSink)

	go func() { _ = orchestrator.Start(ctx) }()

	// Clean everything at the end of the test
	t.Cleanup(func() {
		orchestrator.Stop()
		db.Close()
	})

	content := "this message will self destruct in 5 seconds"
	at := time.Now().UTC()

	// When a message is posted
	message, err := orchestrator.PostMessage(ctx, domain.PostMessageCommand{
		GroupID:   group.ID,
		Sender:    "alice",
		Body:      content,
		CreatedAt: at,
	})
	req.NoError(err)

	// Then the history already holds it (the append is synchronous)
	history, err := orchestrator.GetMessages(domain.GetMessagesCommand{GroupID: group.ID})
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(message.ID, history[0].ID)
	req.Equal(content, history[0].Body)

	// And wait time for channels & goroutines
	select {
	case <-done:
		// Then the event has reached the member sink
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: event has never reached the member sink")
	}

	// The permanent timeline projection saw the event too
	req.Eventually(func() bool {
		return len(timeline.Messages(group.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
