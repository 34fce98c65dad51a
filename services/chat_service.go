//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"talk-hub/contract"
	"talk-hub/domain"
	"talk-hub/runtime"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, error)
	Join(connID string, groupID string, sink contract.EventSink)
	Leave(connID string, groupID string)
	LeaveAll(connID string)
}

// ChatService is the thin application façade the gateway talks to. All
// shared state stays inside the orchestrator and its stores.
type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	return s.orchestrator.PostMessage(ctx, cmd)
}

func (s *ChatService) GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, error) {
	return s.orchestrator.GetMessages(cmd)
}

func (s *ChatService) Join(connID string, groupID string, sink contract.EventSink) {
	s.orchestrator.EnsureGroup(domain.Group{ID: groupID, Name: groupID})
	s.orchestrator.RegisterParticipant(connID, groupID, sink)
}

func (s *ChatService) Leave(connID string, groupID string) {
	s.orchestrator.UnregisterParticipant(connID, groupID)
}

// LeaveAll disconnects a connection from every group it had joined.
func (s *ChatService) LeaveAll(connID string) {
	s.orchestrator.UnregisterAll(connID)
}
