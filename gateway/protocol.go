package gateway

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"talk-hub/domain"
)

// Event names exchanged on the realtime channel.
const (
	EventJoinGroup     = "joinGroup"
	EventLeaveGroup    = "leaveGroup"
	EventSendMessage   = "sendMessage"
	EventGetMessages   = "getMessages"
	EventNewMessage    = "newMessage"
	EventGroupMessages = "groupMessages"
	EventError         = "error"
)

// Envelope is the wire frame for every realtime event, client or server
// initiated. Data is kept raw until the event name selects its shape, so
// unknown fields are dropped instead of propagated.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the client payload for sendMessage. GroupID is
// required; Body is free-form.
type SendMessagePayload struct {
	GroupID string `json:"groupId"`
	Body    string `json:"body"`
}

// WireMessage is the server-side shape of a message on the channel.
type WireMessage struct {
	ID      string    `json:"id"`
	GroupID string    `json:"groupId"`
	Sender  string    `json:"sender"`
	Body    string    `json:"body"`
	At      time.Time `json:"at"`
}

func toWireMessage(m domain.Message) WireMessage {
	return WireMessage{
		ID:      m.ID.String(),
		GroupID: m.GroupID,
		Sender:  m.Sender,
		Body:    m.Body,
		At:      m.CreatedAt,
	}
}

func toWireMessages(messages []domain.Message) []WireMessage {
	return lo.Map(messages, func(m domain.Message, _ int) WireMessage {
		return toWireMessage(m)
	})
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
