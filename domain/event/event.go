package event

import (
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	Group() string
}

// MessagePosted is emitted after a message has been appended to the log.
// The fanout worker delivers it to every live member of the group.
type MessagePosted struct {
	ID      uuid.UUID
	GroupID string
	Sender  string
	Body    string
	At      time.Time
}

func (m MessagePosted) Group() string {
	return m.GroupID
}
