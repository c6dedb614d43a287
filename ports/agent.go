package ports

import (
	"context"

	"github.com/layer-3/tokengate/core"
)

// ChatAgent answers a conversation on behalf of a gated session
type ChatAgent interface {
	Reply(ctx context.Context, msgs []core.ChatMessage) (string, error)
}
