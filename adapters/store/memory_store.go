package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/ports"
)

const (
	// DefaultNonceTTL is how long an issued nonce stays valid
	DefaultNonceTTL = 5 * time.Minute

	// DefaultSweepInterval is how often expired entries are evicted
	DefaultSweepInterval = time.Minute
)

// Option configures a nonce store
type Option func(*options)

type options struct {
	ttl           time.Duration
	grace         time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func defaultOptions() options {
	return options{
		ttl:           DefaultNonceTTL,
		grace:         DefaultNonceTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        slog.Default(),
	}
}

// WithTTL sets the nonce lifetime
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithGrace sets how long used or expired entries are kept around after expiry,
// so late presentations report the precise failure instead of not found.
func WithGrace(grace time.Duration) Option {
	return func(o *options) { o.grace = grace }
}

// WithSweepInterval sets the eviction period of the memory store
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// MemoryStore is an in-memory implementation of the NonceStore interface
type MemoryStore struct {
	opts    options
	entries map[string]*core.NonceEntry
	mu      sync.Mutex
}

// NewMemoryStore creates a new in-memory store. The sweeper runs until ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &MemoryStore{
		opts:    o,
		entries: make(map[string]*core.NonceEntry),
	}

	if o.sweepInterval > 0 {
		go s.sweepLoop(ctx)
	}

	return s
}

var _ ports.NonceStore = (*MemoryStore)(nil)

// Issue generates a nonce bound to walletAddress
func (s *MemoryStore) Issue(ctx context.Context, walletAddress string) (core.NonceEntry, error) {
	nonce, err := core.NewNonce()
	if err != nil {
		return core.NonceEntry{}, err
	}

	entry := core.NonceEntry{
		Nonce:         nonce,
		WalletAddress: walletAddress,
		ExpiresAt:     s.opts.now().Add(s.opts.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := entry
	s.entries[nonce] = &stored

	return entry, nil
}

// ValidateAndConsume checks the entry and marks it used under the store lock
func (s *MemoryStore) ValidateAndConsume(ctx context.Context, nonce, walletAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[nonce]
	if !ok {
		return core.ErrNonceNotFound
	}
	if entry.Used {
		return core.ErrNonceAlreadyUsed
	}
	if s.opts.now().After(entry.ExpiresAt) {
		return core.ErrNonceExpired
	}
	if entry.WalletAddress != walletAddress {
		return core.ErrNonceWalletMismatch
	}

	entry.Used = true
	return nil
}

// Sweep evicts entries whose grace window has passed and returns how many were removed
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for nonce, entry := range s.entries {
		if now.After(entry.ExpiresAt.Add(s.opts.grace)) {
			delete(s.entries, nonce)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries held
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.opts.now()); n > 0 {
				s.opts.logger.Debug("swept expired nonces", "count", n)
			}
		}
	}
}
