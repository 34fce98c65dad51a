// Package domain contains core concepts of the messaging system.
// This file defines Message entities and related rules.
// Messages are immutable once created and never deleted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents one immutable chat message appended to a group.
type Message struct {
	ID        uuid.UUID
	GroupID   string
	Sender    string
	Body      string
	CreatedAt time.Time
}
