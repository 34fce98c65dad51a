package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"talk-hub/domain/event"
)

type Sink struct{}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Group_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()
	sink := Sink{}

	// Given no connection is registered
	sessions, groups := registry.Counts()
	req.Zero(sessions)
	req.Zero(groups)

	// When a connection joins a group
	registry.Subscribe(connID, "bigGroup", sink)

	// Then
	sessions, groups = registry.Counts()
	req.Equal(1, sessions)
	req.Equal(1, groups)

	req.Len(registry.SinksFor("bigGroup"), 1)
	req.Contains(registry.SinksFor("bigGroup"), Sink{})
	req.Contains(registry.Members("bigGroup"), connID)
}

func TestRegistry_Subscribe_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()

	// When a connection joins the same group twice
	registry.Subscribe(connID, "bigGroup", Sink{})
	registry.Subscribe(connID, "bigGroup", Sink{})

	// Then membership is unchanged
	req.Len(registry.SinksFor("bigGroup"), 1)
	req.Len(registry.Members("bigGroup"), 1)
}

func TestRegistry_Subscribe_One_Group_Multiple_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// When connections join a group
	registry.Subscribe(uuid.NewString(), "bigGroup", Sink{})
	registry.Subscribe(uuid.NewString(), "bigGroup", Sink{})

	// Then
	sessions, _ := registry.Counts()
	req.Equal(2, sessions)
	req.Len(registry.SinksFor("bigGroup"), 2)
}

func TestRegistry_Unknown_Group_Is_Empty(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Broadcasting to an unknown group is a no-op, not an error
	req.Nil(registry.SinksFor("nowhere"))
	req.Empty(registry.Members("nowhere"))
}

func TestRegistry_Unsubscribe_One_Group_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()

	// Given a connection joined a group
	registry.Subscribe(connID, "bigGroup", Sink{})

	// When it leaves
	registry.Unsubscribe(connID, "bigGroup")

	// Then no connection is left and the membership set is pruned
	sessions, groups := registry.Counts()
	req.Zero(sessions)
	req.Zero(groups)
	req.Nil(registry.SinksFor("bigGroup"))
}

func TestRegistry_UnsubscribeAll_Cleans_Every_Group(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()
	otherID := uuid.NewString()

	// Given a connection joined several groups
	registry.Subscribe(connID, "g1", Sink{})
	registry.Subscribe(connID, "g2", Sink{})
	registry.Subscribe(otherID, "g2", Sink{})

	// When it disconnects
	registry.UnsubscribeAll(connID)

	// Then it no longer appears anywhere
	req.Nil(registry.SinksFor("g1"))
	req.NotContains(registry.Members("g2"), connID)
	req.Contains(registry.Members("g2"), otherID)

	// And disconnecting again is a harmless no-op
	registry.UnsubscribeAll(connID)
	sessions, _ := registry.Counts()
	req.Equal(1, sessions)
}
