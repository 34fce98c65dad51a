package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talk-hub/domain"
	"talk-hub/domain/event"
	apperrors "talk-hub/errors"
	"talk-hub/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 54 * time.Second
	maxMessageSize = 64 << 10
)

// Client is one live connection on the realtime channel. It owns exactly
// one authenticated identity and holds membership only through its id;
// group state itself lives in the registry.
//
// Client implements contract.EventSink: fan-out deliveries go through the
// buffered send channel, so a slow consumer only loses its own deliveries
// and never stalls the fanout worker.
//
// The send channel is never closed: the fanout worker may still hold this
// sink in a membership snapshot taken before the disconnect, so teardown
// flips a guarded flag instead and the write pump exits via done.
type Client struct {
	id       string
	username string
	conn     *websocket.Conn
	chat     services.IChatService
	log      *slog.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte
	done   chan struct{}

	teardown sync.Once
}

func NewClient(conn *websocket.Conn, username string, chat services.IChatService,
	bufferSize int, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		id:       uuid.NewString(),
		username: username,
		conn:     conn,
		send:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
		chat:     chat,
		log:      log,
	}
}

// ID returns the connection identifier used for group membership.
func (c *Client) ID() string {
	return c.id
}

// Consume delivers one fanned-out event to this connection. A full send
// buffer or an already closed connection drops only this delivery; the
// error is reported to the fanout worker which tolerates partial delivery.
func (c *Client) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}

	payload, err := encodeEnvelope(EventNewMessage, WireMessage{
		ID:      posted.ID.String(),
		GroupID: posted.GroupID,
		Sender:  posted.Sender,
		Body:    posted.Body,
		At:      posted.At,
	})
	if err != nil {
		return err
	}

	return c.enqueue(payload)
}

// Run starts the read and write pumps and blocks until the connection is
// closed. Cleanup always runs exactly once: membership is removed from
// every joined group and resources are released.
func (c *Client) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.readPump(ctx)
	<-done
}

func (c *Client) readPump(ctx context.Context) {
	defer c.close()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected close on realtime channel", "conn", c.id, "err", err)
			}
			return
		}
		c.dispatch(ctx, raw)
	}
}

// dispatch routes one inbound frame. Malformed frames are answered with a
// local error event to this connection only, never broadcast.
func (c *Client) dispatch(ctx context.Context, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.sendError("malformed frame")
		return
	}

	switch envelope.Event {
	case EventJoinGroup:
		c.handleJoin(envelope.Data)
	case EventLeaveGroup:
		c.handleLeave(envelope.Data)
	case EventSendMessage:
		c.handleSend(ctx, envelope.Data)
	case EventGetMessages:
		c.handleGetMessages(envelope.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event %q", envelope.Event))
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	groupID, ok := decodeGroupID(data)
	if !ok {
		c.sendError("joinGroup requires a group id")
		return
	}
	c.chat.Join(c.id, groupID, c)
	c.log.Debug("Connection joined group", "conn", c.id, "user", c.username, "group", groupID)
}

func (c *Client) handleLeave(data json.RawMessage) {
	groupID, ok := decodeGroupID(data)
	if !ok {
		c.sendError("leaveGroup requires a group id")
		return
	}
	c.chat.Leave(c.id, groupID)
}

func (c *Client) handleSend(ctx context.Context, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GroupID == "" {
		c.sendError("sendMessage requires a groupId")
		return
	}

	_, err := c.chat.PostMessage(ctx, domain.PostMessageCommand{
		GroupID: payload.GroupID,
		Sender:  c.username,
		Body:    payload.Body,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrMissingGroupID) {
			c.sendError("sendMessage requires a groupId")
			return
		}
		c.log.Error("Failed to post message", "conn", c.id, "err", err)
		c.sendError("message could not be delivered")
	}
}

// handleGetMessages replies to the requesting connection only; history is
// never broadcast.
func (c *Client) handleGetMessages(data json.RawMessage) {
	groupID, ok := decodeGroupID(data)
	if !ok {
		c.sendError("getMessages requires a group id")
		return
	}

	messages, err := c.chat.GetMessages(domain.GetMessagesCommand{GroupID: groupID})
	if err != nil {
		c.log.Error("Failed to load history", "conn", c.id, "group", groupID, "err", err)
		c.sendError("history unavailable")
		return
	}

	payload, err := encodeEnvelope(EventGroupMessages, toWireMessages(messages))
	if err != nil {
		c.sendError("history unavailable")
		return
	}
	if err := c.enqueue(payload); err != nil {
		c.log.Debug("History frame dropped", "conn", c.id, "err", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(reason string) {
	payload, err := encodeEnvelope(EventError, reason)
	if err != nil {
		return
	}
	if err := c.enqueue(payload); err != nil {
		c.log.Debug("Error frame dropped", "conn", c.id, "err", err)
	}
}

// enqueue hands a frame to the write pump. The mutex serializes enqueue
// against close so a late fan-out delivery after disconnect is refused
// instead of hitting a dead channel.
func (c *Client) enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection %s is closed", c.id)
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

// close tears the connection down exactly once: membership is removed from
// every group, the write pump is released, and the socket is closed. The
// send channel stays open; the closed flag makes later deliveries no-ops.
func (c *Client) close() {
	c.teardown.Do(func() {
		c.chat.LeaveAll(c.id)
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.log.Debug("Connection closed", "conn", c.id, "user", c.username)
	})
}

// decodeGroupID accepts the group id either as a bare JSON string or as
// an object carrying a groupId field.
func decodeGroupID(data json.RawMessage) (string, bool) {
	var groupID string
	if err := json.Unmarshal(data, &groupID); err == nil && groupID != "" {
		return groupID, true
	}

	var wrapped struct {
		GroupID string `json:"groupId"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.GroupID != "" {
		return wrapped.GroupID, true
	}
	return "", false
}
