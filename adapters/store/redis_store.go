package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/ports"
	"github.com/redis/go-redis/v9"
)

// consumeScript performs the whole check-then-set server side.
// KEYS[1] nonce key; ARGV[1] presenting wallet; ARGV[2] now in unix ms.
var consumeScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'wallet', 'expires_at', 'used')
if not f[1] then
  return 'not_found'
end
if f[3] == '1' then
  return 'used'
end
if tonumber(ARGV[2]) > tonumber(f[2]) then
  return 'expired'
end
if f[1] ~= ARGV[1] then
  return 'mismatch'
end
redis.call('HSET', KEYS[1], 'used', '1')
return 'ok'
`)

// RedisStore is a Redis implementation of the NonceStore interface
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   options
}

// NewRedisStore creates a new Redis store. Keys expire natively after TTL plus grace.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &RedisStore{
		client: client,
		prefix: "tokengate:nonce:",
		opts:   o,
	}
}

var _ ports.NonceStore = (*RedisStore)(nil)

// Issue stores a new nonce hash with expiry
func (s *RedisStore) Issue(ctx context.Context, walletAddress string) (core.NonceEntry, error) {
	nonce, err := core.NewNonce()
	if err != nil {
		return core.NonceEntry{}, err
	}

	entry := core.NonceEntry{
		Nonce:         nonce,
		WalletAddress: walletAddress,
		ExpiresAt:     s.opts.now().Add(s.opts.ttl),
	}

	key := s.prefix + nonce
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"wallet", walletAddress,
		"expires_at", strconv.FormatInt(entry.ExpiresAt.UnixMilli(), 10),
		"used", "0",
	)
	pipe.PExpire(ctx, key, s.opts.ttl+s.opts.grace)

	if _, err := pipe.Exec(ctx); err != nil {
		return core.NonceEntry{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return entry, nil
}

// ValidateAndConsume runs the check-and-mark script
func (s *RedisStore) ValidateAndConsume(ctx context.Context, nonce, walletAddress string) error {
	now := strconv.FormatInt(s.opts.now().UnixMilli(), 10)

	res, err := consumeScript.Run(ctx, s.client, []string{s.prefix + nonce}, walletAddress, now).Text()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}

	switch res {
	case "ok":
		return nil
	case "not_found":
		return core.ErrNonceNotFound
	case "used":
		return core.ErrNonceAlreadyUsed
	case "expired":
		return core.ErrNonceExpired
	case "mismatch":
		return core.ErrNonceWalletMismatch
	default:
		return fmt.Errorf("unexpected consume result %q", res)
	}
}
