package domain

import "time"

type Command interface {
	Group() string
}

// PostMessageCommand asks for a message to be appended to a group and
// fanned out to its live members.
type PostMessageCommand struct {
	GroupID   string
	Sender    string
	Body      string
	CreatedAt time.Time
}

func (p PostMessageCommand) Group() string {
	return p.GroupID
}

// GetMessagesCommand asks for the ordered history of one group.
type GetMessagesCommand struct {
	GroupID string
	Limit   *int
}

func (p GetMessagesCommand) Group() string {
	return p.GroupID
}
