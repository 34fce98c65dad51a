package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"talk-hub/domain"
	apperrors "talk-hub/errors"
	"talk-hub/mocks"
	"talk-hub/repositories"
	"talk-hub/runtime/workers"
)

func newTestOrchestrator(t *testing.T, repo repositories.IMessageRepository) *Orchestrator {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	return NewOrchestrator(log, workers.NewSupervisor(log, 200*time.Millisecond),
		NewRegistry(), repo, 16, nil, time.Minute)
}

func TestOrchestrator_PostMessage_AppendsBeforeBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	orchestrator := newTestOrchestrator(t, mockRepo)

	var stored repositories.DiskMessage
	mockRepo.EXPECT().
		StoreMessage(gomock.Any()).
		Do(func(message repositories.DiskMessage) { stored = message }).
		Return(nil).
		Times(1)

	// When a message is posted
	message, err := orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		GroupID: "bigGroup",
		Sender:  "alice",
		Body:    "hi",
	})

	// Then it is appended synchronously with an assigned id and timestamp
	req.NoError(err)
	req.NotEqual(uuid.Nil, message.ID)
	req.False(message.CreatedAt.IsZero())
	req.Equal(message.ID, stored.ID)
	req.Equal("bigGroup", stored.GroupID)
	req.Equal("alice", stored.Sender)
	req.Equal("hi", stored.Body)
}

func TestOrchestrator_PostMessage_StoredMessageIsNeverReportedAsFailed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIMessageRepository(ctrl)

	// A buffer of zero means the broadcast is always dropped
	log := logs.GetLoggerFromLevel(slog.LevelError)
	orchestrator := NewOrchestrator(log, workers.NewSupervisor(log, 200*time.Millisecond),
		NewRegistry(), mockRepo, 0, nil, time.Minute)

	mockRepo.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Even with a canceled context and no room for the event, the append
	// succeeded, so the caller must not be told the message failed
	message, err := orchestrator.PostMessage(ctx, domain.PostMessageCommand{
		GroupID: "bigGroup",
		Sender:  "alice",
		Body:    "hi",
	})

	req.NoError(err)
	req.NotEqual(uuid.Nil, message.ID)
}

func TestOrchestrator_PostMessage_RejectsMissingGroup(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	orchestrator := newTestOrchestrator(t, mockRepo)

	// The repository must never be reached
	mockRepo.EXPECT().StoreMessage(gomock.Any()).Times(0)

	_, err := orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		Sender: "alice",
		Body:   "hi",
	})

	req.ErrorIs(err, apperrors.ErrMissingGroupID)
}

func TestOrchestrator_GetMessages_MapsHistory(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	orchestrator := newTestOrchestrator(t, mockRepo)

	id := uuid.New()
	at := time.Now().UTC()
	mockRepo.EXPECT().
		GetMessages("bigGroup", gomock.Nil()).
		Return([]repositories.DiskMessage{
			{ID: id, GroupID: "bigGroup", Sender: "alice", Body: "hi", At: at},
		}, nil).
		Times(1)

	messages, err := orchestrator.GetMessages(domain.GetMessagesCommand{GroupID: "bigGroup"})

	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(domain.Message{ID: id, GroupID: "bigGroup", Sender: "alice", Body: "hi", CreatedAt: at}, messages[0])
}

func TestOrchestrator_EnsureGroup_IsIdempotent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orchestrator := newTestOrchestrator(t, mocks.NewMockIMessageRepository(ctrl))

	first := orchestrator.EnsureGroup(domain.Group{ID: "bigGroup", Name: "大群"})
	second := orchestrator.EnsureGroup(domain.Group{ID: "bigGroup", Name: "renamed"})

	// The original identity wins
	req.Equal(first, second)
	req.Equal("大群", second.Name)
}
