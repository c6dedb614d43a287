package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/ports"
)

// DecisionTopic carries one message per completed access decision
const DecisionTopic = "tokengate.access.decision"

// DecisionEvent represents an access decision
type DecisionEvent struct {
	WalletAddress string    `json:"wallet_address"`
	Verified      bool      `json:"verified"`
	HasAccess     bool      `json:"has_access"`
	Balance       string    `json:"balance"`
	Threshold     string    `json:"threshold"`
	DecidedAt     time.Time `json:"decided_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     DecisionTopic,
	}
}

// PublishDecision publishes an access decision event
func (p *WatermillPublisher) PublishDecision(ctx context.Context, walletAddress string, decision core.AccessDecision) error {
	event := DecisionEvent{
		WalletAddress: walletAddress,
		Verified:      decision.Verified,
		HasAccess:     decision.HasAccess,
		Balance:       decision.Balance.String(),
		Threshold:     decision.Threshold.String(),
		DecidedAt:     decision.DecidedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("wallet_address", walletAddress)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

// PublishDecision does nothing
func (NopPublisher) PublishDecision(context.Context, string, core.AccessDecision) error {
	return nil
}
