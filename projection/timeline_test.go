package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"talk-hub/domain/event"
)

func TestTimeline_KeepsPerGroupOrder(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	first := event.MessagePosted{ID: uuid.New(), GroupID: "bigGroup", Sender: "alice", Body: "one", At: time.Now().UTC()}
	second := event.MessagePosted{ID: uuid.New(), GroupID: "bigGroup", Sender: "bob", Body: "two", At: time.Now().UTC()}
	elsewhere := event.MessagePosted{ID: uuid.New(), GroupID: "other", Sender: "carol", Body: "noise", At: time.Now().UTC()}

	req.NoError(timeline.Consume(ctx, first))
	req.NoError(timeline.Consume(ctx, elsewhere))
	req.NoError(timeline.Consume(ctx, second))

	messages := timeline.Messages("bigGroup")
	req.Len(messages, 2)
	req.Equal("one", messages[0].Body)
	req.Equal("two", messages[1].Body)

	req.Empty(timeline.Messages("unknown"))
}
