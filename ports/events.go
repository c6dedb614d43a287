package ports

import (
	"context"

	"github.com/layer-3/tokengate/core"
)

// EventPublisher publishes access decisions to interested consumers
type EventPublisher interface {
	PublishDecision(ctx context.Context, walletAddress string, decision core.AccessDecision) error
}
