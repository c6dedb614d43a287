package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/ports"
)

// ChatService forwards conversations of granted sessions to the agent
type ChatService struct {
	agent  ports.ChatAgent
	logger *slog.Logger
}

// NewChatService creates a chat service; a nil agent means the agent is not configured
func NewChatService(agent ports.ChatAgent, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{agent: agent, logger: logger}
}

// Reply trims the conversation and asks the agent for the next turn
func (s *ChatService) Reply(ctx context.Context, session *core.Session, msgs []core.ChatMessage) (string, error) {
	if s.agent == nil {
		return "", fmt.Errorf("%w: agent api key", core.ErrMissingConfig)
	}

	msgs = core.TrimConversation(msgs, core.MaxChatMessages)
	if !core.HasUserMessage(msgs) {
		return "", core.ErrNoUserMessage
	}

	reply, err := s.agent.Reply(ctx, msgs)
	if err != nil {
		s.logger.ErrorContext(ctx, "agent reply failed", "wallet", session.WalletAddress, "error", err)
		return "", fmt.Errorf("failed to get agent reply: %w", err)
	}

	s.logger.InfoContext(ctx, "agent replied", "wallet", session.WalletAddress, "turns", len(msgs))
	return reply, nil
}
