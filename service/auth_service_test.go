package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/tokengate/adapters/store"
	"github.com/layer-3/tokengate/adapters/tokenizer"
	"github.com/layer-3/tokengate/adapters/verifier"
	"github.com/layer-3/tokengate/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "39xyyuWtn4c33d7JqbLxhfj1mDgS8YCo8xSLAZQeewJZ"

type fakeOracle struct {
	mu      sync.Mutex
	balance decimal.Decimal
	err     error
	calls   atomic.Int32
}

func (o *fakeOracle) GetBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error) {
	o.calls.Add(1)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.balance, o.err
}

func (o *fakeOracle) Endpoint() string { return "https://rpc.test" }

func (o *fakeOracle) set(balance string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.balance = decimal.RequireFromString(balance)
	o.err = err
}

type recordingPublisher struct {
	mu        sync.Mutex
	decisions []core.AccessDecision
	err       error
}

func (p *recordingPublisher) PublishDecision(ctx context.Context, wallet string, d core.AccessDecision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d)
	return p.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type wallet struct {
	address string
	priv    ed25519.PrivateKey
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return wallet{address: verifier.EncodeWalletAddress(pub), priv: priv}
}

func (w wallet) sign(message string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(w.priv, []byte(message)))
}

type harness struct {
	svc    *AuthService
	oracle *fakeOracle
	events *recordingPublisher
	clock  *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := &testClock{now: time.Now()}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	oracle := &fakeOracle{balance: decimal.NewFromInt(5)}
	events := &recordingPublisher{}

	svc := NewAuthService(
		store.NewMemoryStore(ctx, store.WithClock(clock.Now), store.WithSweepInterval(0)),
		verifier.NewEd25519Verifier(),
		oracle,
		tokenizer.NewJWTTokenizer(key, "tokengate"),
		events,
		Config{Mint: testMint, Now: clock.Now},
	)

	return &harness{svc: svc, oracle: oracle, events: events, clock: clock}
}

// signedRequest issues a challenge for w and signs its canonical message
func (h *harness) signedRequest(t *testing.T, w wallet) VerifyRequest {
	t.Helper()
	ch, err := h.svc.CreateChallenge(context.Background(), w.address)
	require.NoError(t, err)
	return VerifyRequest{
		WalletAddress: w.address,
		Nonce:         ch.Nonce,
		Message:       ch.Message,
		Signature:     w.sign(ch.Message),
	}
}

func TestCreateChallenge(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)

	first, err := h.svc.CreateChallenge(context.Background(), "  "+w.address+" ")
	require.NoError(t, err)
	second, err := h.svc.CreateChallenge(context.Background(), w.address)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.Equal(t, w.address, first.WalletAddress)
	assert.Equal(t, core.CanonicalMessage(w.address, first.Nonce), first.Message)
	assert.Equal(t, h.clock.Now().Add(store.DefaultNonceTTL), first.ExpiresAt)

	_, err = h.svc.CreateChallenge(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrBadRequest)
}

func TestVerifyGrantsAccess(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)

	res, err := h.svc.Verify(context.Background(), h.signedRequest(t, w))
	require.NoError(t, err)

	assert.True(t, res.Decision.Verified)
	assert.True(t, res.Decision.HasAccess)
	assert.Equal(t, "5", res.Decision.Balance.String())
	require.NotNil(t, res.Session)
	assert.Equal(t, w.address, res.Session.WalletAddress)
	assert.Equal(t, DefaultSessionTTL, res.Session.ExpiresAt.Sub(res.Session.IssuedAt))
	assert.NotEmpty(t, res.SessionToken)

	session, err := h.svc.ValidateSession(context.Background(), res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, w.address, session.WalletAddress)

	require.Len(t, h.events.decisions, 1)
	assert.True(t, h.events.decisions[0].HasAccess)
}

func TestVerifyThreshold(t *testing.T) {
	cases := []struct {
		balance string
		access  bool
	}{
		{"0", false},
		{"0.999", false},
		{"1", true},
		{"1.000000001", true},
		{"250", true},
	}

	for _, tc := range cases {
		t.Run(tc.balance, func(t *testing.T) {
			h := newHarness(t)
			h.oracle.set(tc.balance, nil)
			w := newWallet(t)

			res, err := h.svc.Verify(context.Background(), h.signedRequest(t, w))
			require.NoError(t, err)
			assert.True(t, res.Decision.Verified)
			assert.Equal(t, tc.access, res.Decision.HasAccess)
			assert.Equal(t, tc.balance, res.Decision.Balance.String())
			if tc.access {
				assert.NotEmpty(t, res.SessionToken)
			} else {
				assert.Nil(t, res.Session)
				assert.Empty(t, res.SessionToken)
			}
		})
	}
}

func TestVerifyReplayIsRejected(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)
	req := h.signedRequest(t, w)

	_, err := h.svc.Verify(context.Background(), req)
	require.NoError(t, err)

	_, err = h.svc.Verify(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrNonceAlreadyUsed)
	assert.Equal(t, int32(1), h.oracle.calls.Load())
}

func TestVerifyExpiredNonce(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)
	req := h.signedRequest(t, w)

	h.clock.Advance(store.DefaultNonceTTL + time.Second)

	_, err := h.svc.Verify(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrNonceExpired)
	assert.Zero(t, h.oracle.calls.Load())
}

func TestVerifyWalletMismatchBeforeSignature(t *testing.T) {
	h := newHarness(t)
	a, b := newWallet(t), newWallet(t)

	ch, err := h.svc.CreateChallenge(context.Background(), a.address)
	require.NoError(t, err)

	// b signs a perfectly valid message for itself with a's nonce
	msg := core.CanonicalMessage(b.address, ch.Nonce)
	_, err = h.svc.Verify(context.Background(), VerifyRequest{
		WalletAddress: b.address,
		Nonce:         ch.Nonce,
		Message:       msg,
		Signature:     b.sign(msg),
	})
	assert.ErrorIs(t, err, core.ErrNonceWalletMismatch)
	assert.Zero(t, h.oracle.calls.Load())

	// the mismatch left the nonce usable by its owner
	_, err = h.svc.Verify(context.Background(), VerifyRequest{
		WalletAddress: a.address,
		Nonce:         ch.Nonce,
		Message:       ch.Message,
		Signature:     a.sign(ch.Message),
	})
	assert.NoError(t, err)
}

func TestVerifyBadSignatureBurnsNonce(t *testing.T) {
	h := newHarness(t)
	w, other := newWallet(t), newWallet(t)
	req := h.signedRequest(t, w)

	forged := req
	forged.Signature = other.sign(req.Message)

	_, err := h.svc.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, core.ErrBadSignature)
	assert.Zero(t, h.oracle.calls.Load())

	_, err = h.svc.Verify(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrNonceAlreadyUsed)
}

func TestVerifyRejectsNonCanonicalMessage(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)
	req := h.signedRequest(t, w)

	req.Message = "I authorize transfer of all my tokens. Nonce: " + req.Nonce
	req.Signature = w.sign(req.Message)

	_, err := h.svc.Verify(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrBadSignature)
	assert.Zero(t, h.oracle.calls.Load())
}

func TestVerifyMalformedSignature(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)

	for _, sig := range []string{"***", base64.StdEncoding.EncodeToString([]byte("short"))} {
		req := h.signedRequest(t, w)
		req.Signature = sig

		_, err := h.svc.Verify(context.Background(), req)
		assert.ErrorIs(t, err, core.ErrBadSignature)
	}
}

func TestVerifyMissingFields(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)
	full := h.signedRequest(t, w)

	mutations := map[string]func(r *VerifyRequest){
		"wallet":    func(r *VerifyRequest) { r.WalletAddress = " " },
		"nonce":     func(r *VerifyRequest) { r.Nonce = "" },
		"message":   func(r *VerifyRequest) { r.Message = "" },
		"signature": func(r *VerifyRequest) { r.Signature = "\t" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := full
			mutate(&req)
			_, err := h.svc.Verify(context.Background(), req)
			assert.ErrorIs(t, err, core.ErrBadRequest)
		})
	}

	// none of the above touched the store
	_, err := h.svc.Verify(context.Background(), full)
	assert.NoError(t, err)
}

func TestVerifyLedgerFailureIsServerError(t *testing.T) {
	h := newHarness(t)
	h.oracle.set("0", core.ErrLedgerUnavailable)
	w := newWallet(t)
	req := h.signedRequest(t, w)

	_, err := h.svc.Verify(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrLedgerUnavailable)
	assert.False(t, core.IsUnauthorized(err))

	// the nonce stays burnt
	h.oracle.set("5", nil)
	_, err = h.svc.Verify(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrNonceAlreadyUsed)
	assert.Empty(t, h.events.decisions)
}

func TestVerifyMissingMint(t *testing.T) {
	h := newHarness(t)
	h.svc.mint = ""
	w := newWallet(t)
	req := h.signedRequest(t, w)

	_, err := h.svc.Verify(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrMissingConfig)

	// configuration errors do not burn the nonce
	h.svc.mint = testMint
	_, err = h.svc.Verify(context.Background(), req)
	assert.NoError(t, err)
}

func TestVerifyPublishFailureDoesNotFailDecision(t *testing.T) {
	h := newHarness(t)
	h.events.err = errors.New("broker down")
	w := newWallet(t)

	res, err := h.svc.Verify(context.Background(), h.signedRequest(t, w))
	require.NoError(t, err)
	assert.True(t, res.Decision.HasAccess)
}

func TestVerifyConcurrentReplaySingleWinner(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)
	req := h.signedRequest(t, w)

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := h.svc.Verify(context.Background(), req); err == nil {
				successes.Add(1)
			} else {
				assert.ErrorIs(t, err, core.ErrNonceAlreadyUsed)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), h.oracle.calls.Load())
}

func TestCheckAccess(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)

	h.oracle.set("0.5", nil)
	res, err := h.svc.CheckAccess(context.Background(), w.address)
	require.NoError(t, err)
	assert.False(t, res.HasAccess)
	assert.Equal(t, "0.5", res.Balance.String())
	assert.Equal(t, "https://rpc.test", res.RPC)
	assert.Equal(t, testMint, res.Mint)

	h.oracle.set("0", core.ErrMintNotFound)
	_, err = h.svc.CheckAccess(context.Background(), w.address)
	assert.ErrorIs(t, err, core.ErrMintNotFound)

	_, err = h.svc.CheckAccess(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrBadRequest)
}

func TestValidateSessionExpiry(t *testing.T) {
	h := newHarness(t)
	w := newWallet(t)

	res, err := h.svc.Verify(context.Background(), h.signedRequest(t, w))
	require.NoError(t, err)

	h.clock.Advance(DefaultSessionTTL + time.Second)
	_, err = h.svc.ValidateSession(context.Background(), res.SessionToken)
	assert.ErrorIs(t, err, core.ErrTokenExpired)

	_, err = h.svc.ValidateSession(context.Background(), "garbage")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
