package sniper

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raysniper/internal/config"
	"raysniper/internal/domain"
	"raysniper/internal/engine"
	"raysniper/internal/solana"
)

type stubResolver struct {
	keys *domain.PoolKeySet
	err  error
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (*domain.PoolKeySet, error) {
	return s.keys, s.err
}

type stubRegistry struct {
	mu     sync.Mutex
	stored map[string]*domain.PoolKeySet
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{stored: make(map[string]*domain.PoolKeySet)}
}

func (s *stubRegistry) Upsert(_ context.Context, keys *domain.PoolKeySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[keys.BaseMint] = keys
	return nil
}

func (s *stubRegistry) Get(_ context.Context, baseMint string) (*domain.PoolKeySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored[baseMint], nil
}

func (s *stubRegistry) List(_ context.Context) ([]*domain.PoolKeySet, error) {
	return nil, nil
}

func (s *stubRegistry) Close() error { return nil }

type stubSafety struct {
	result domain.SafetyResult
	calls  int
}

func (s *stubSafety) Evaluate(_ context.Context, _, _ string) domain.SafetyResult {
	s.calls++
	return s.result
}

type stubBuyer struct {
	sig   string
	err   error
	calls int
}

func (s *stubBuyer) Buy(_ context.Context, _ *solana.Keypair, _ engine.BuyParams) (string, error) {
	s.calls++
	return s.sig, s.err
}

type stubFallback struct {
	sig   string
	err   error
	calls int
}

func (s *stubFallback) Buy(_ context.Context, _ *solana.Keypair, _ string, _ uint64, _ int) (string, error) {
	s.calls++
	return s.sig, s.err
}

type stubOutcomes struct {
	mu      sync.Mutex
	records []*domain.OutcomeRecord
}

func (s *stubOutcomes) Record(_ context.Context, rec *domain.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *stubOutcomes) last(t *testing.T) *domain.OutcomeRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.records, "expected an outcome record")
	return s.records[len(s.records)-1]
}

type stubAllowlist struct {
	mu      sync.Mutex
	entries map[string]struct{}
	removed []string
}

func newStubAllowlist(mints ...string) *stubAllowlist {
	entries := make(map[string]struct{})
	for _, m := range mints {
		entries[m] = struct{}{}
	}
	return &stubAllowlist{entries: entries}
}

func (s *stubAllowlist) Contains(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[mint]
	return ok
}

func (s *stubAllowlist) Remove(mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, mint)
	s.removed = append(s.removed, mint)
	return nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	resolver *stubResolver
	registry *stubRegistry
	safety   *stubSafety
	buyer    *stubBuyer
	fallback *stubFallback
	outcomes *stubOutcomes
	list     *stubAllowlist
	mint     string
}

func walletSecret(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base58.Encode(priv)
}

func newPipelineFixture(t *testing.T, mutate func(*PipelineOptions)) *pipelineFixture {
	t.Helper()

	mint := randomPubkey(t)
	keys := &domain.PoolKeySet{
		ID:        randomPubkey(t),
		BaseMint:  mint,
		QuoteMint: solana.WSOL,
		Version:   4,
	}

	cfg := &config.Config{}
	cfg.Wallet.SecretKey = walletSecret(t)
	cfg.Buy.AmountLamports = 10_000_000
	cfg.Buy.SlippageBps = 500
	cfg.Buy.TipLamports = 1_000_000
	cfg.RPC.Endpoint = "https://rpc.test"

	opts := PipelineOptions{
		Runtime:          config.NewRuntimeHolder(cfg),
		ComputeUnitLimit: 300_000,
		ComputeUnitPrice: 100_000,
		TipAccounts:      []string{randomPubkey(t)},
		SafetyEnabled:    true,
		SnipeListEnabled: false,
	}
	if mutate != nil {
		mutate(&opts)
	}

	f := &pipelineFixture{
		resolver: &stubResolver{keys: keys},
		registry: newStubRegistry(),
		safety:   &stubSafety{result: domain.SafeResult()},
		buyer:    &stubBuyer{sig: "raysig"},
		fallback: &stubFallback{sig: "jupsig"},
		outcomes: &stubOutcomes{},
		list:     newStubAllowlist(mint),
		mint:     mint,
	}
	f.pipeline = NewPipeline(
		f.resolver, f.registry, f.safety, f.buyer, f.fallback,
		f.outcomes, f.list, opts, zerolog.Nop(),
	)
	return f
}

func (f *pipelineFixture) runOne(t *testing.T) {
	t.Helper()

	candidates := make(chan domain.CandidateEvent, 1)
	candidates <- domain.CandidateEvent{
		Signature:  "sig1",
		Logs:       []string{rayLogLine(t, randomPubkey(t))},
		Creator:    "creator1",
		ObservedAt: time.Now(),
	}
	close(candidates)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.pipeline.Run(ctx, candidates)
}

func TestPipeline_HappyPath(t *testing.T) {
	f := newPipelineFixture(t, nil)

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSettled, rec.Status)
	assert.Equal(t, ProviderRaydium, rec.Provider)
	assert.Equal(t, "raysig", rec.Signature)
	assert.Equal(t, f.mint, rec.BaseMint)
	assert.Equal(t, "safe", rec.Verdict)
	assert.NotEmpty(t, rec.ID)

	assert.Equal(t, 1, f.safety.calls)
	assert.Equal(t, 1, f.buyer.calls)
	assert.Equal(t, 0, f.fallback.calls)

	stored, err := f.registry.Get(context.Background(), f.mint)
	require.NoError(t, err)
	assert.NotNil(t, stored, "resolved keys must be persisted")
}

func TestPipeline_DangerousVerdictSkipsBuy(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.safety.result = domain.DangerousResult("mint authority not renounced")

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSkipped, rec.Status)
	assert.Equal(t, "dangerous", rec.Verdict)
	assert.Contains(t, rec.Reason, "mint authority")
	assert.Equal(t, 0, f.buyer.calls)
}

func TestPipeline_IndeterminateVerdictSkipsBuy(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.safety.result = domain.IndeterminateResult(errors.New("rpc down"))

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSkipped, rec.Status)
	assert.Equal(t, "indeterminate", rec.Verdict)
	assert.Equal(t, 0, f.buyer.calls, "indeterminate must never buy")
}

func TestPipeline_SafetyDisabledBuysDirectly(t *testing.T) {
	f := newPipelineFixture(t, func(opts *PipelineOptions) {
		opts.SafetyEnabled = false
	})

	f.runOne(t)

	assert.Equal(t, 0, f.safety.calls)
	assert.Equal(t, 1, f.buyer.calls)
	assert.Equal(t, domain.OutcomeSettled, f.outcomes.last(t).Status)
}

func TestPipeline_SnipeListGate(t *testing.T) {
	f := newPipelineFixture(t, func(opts *PipelineOptions) {
		opts.SnipeListEnabled = true
	})
	// Empty the allowlist so the candidate is filtered.
	require.NoError(t, f.list.Remove(f.mint))
	f.list.removed = nil

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSkipped, rec.Status)
	assert.Equal(t, "not in snipe list", rec.Reason)
	assert.Equal(t, 0, f.buyer.calls)
}

func TestPipeline_SnipeListEntryRemovedAfterBuy(t *testing.T) {
	f := newPipelineFixture(t, func(opts *PipelineOptions) {
		opts.SnipeListEnabled = true
	})

	f.runOne(t)

	assert.Equal(t, domain.OutcomeSettled, f.outcomes.last(t).Status)
	assert.Equal(t, []string{f.mint}, f.list.removed)
}

func TestPipeline_FallbackOnBroadcastExhausted(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.buyer.err = domain.ErrBroadcastExhausted
	f.buyer.sig = ""

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSettled, rec.Status)
	assert.Equal(t, ProviderJupiter, rec.Provider)
	assert.Equal(t, "jupsig", rec.Signature)
	assert.Equal(t, 1, f.fallback.calls)
}

func TestPipeline_FallbackOnDirectBuildFailure(t *testing.T) {
	f := newPipelineFixture(t, nil)
	// A failure before anything is sent, not a relay exhaustion.
	f.buyer.sig = ""
	f.buyer.err = errors.New("no tip accounts configured")

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSettled, rec.Status)
	assert.Equal(t, ProviderJupiter, rec.Provider)
	assert.Equal(t, "jupsig", rec.Signature)
	assert.Equal(t, 1, f.fallback.calls, "any unsent direct failure must consult the aggregator")
}

func TestPipeline_ConfirmErrorIsAmbiguous(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.buyer.sig = "sentinel-sig"
	f.buyer.err = &domain.ConfirmError{Signature: "sentinel-sig", Err: errors.New("timeout")}

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeAmbiguous, rec.Status)
	assert.Equal(t, "sentinel-sig", rec.Signature, "signature must survive ambiguous outcomes")
	assert.Equal(t, 0, f.fallback.calls, "a sent transaction must not trigger the fallback")
}

func TestPipeline_UnsupportedQuoteSkipped(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.resolver.keys = nil
	f.resolver.err = domain.ErrUnsupportedQuote

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSkipped, rec.Status)
	assert.Equal(t, 0, f.buyer.calls)
}

func TestPipeline_ResolutionFailureRecorded(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.resolver.keys = nil
	f.resolver.err = errors.New("account never appeared")

	f.runOne(t)

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeFailed, rec.Status)
	assert.Contains(t, rec.Reason, "never appeared")
}

func TestPipeline_IgnoresNonInitLogs(t *testing.T) {
	f := newPipelineFixture(t, nil)

	candidates := make(chan domain.CandidateEvent, 1)
	candidates <- domain.CandidateEvent{
		Signature:  "sig1",
		Logs:       []string{"Program log: unrelated"},
		ObservedAt: time.Now(),
	}
	close(candidates)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.pipeline.Run(ctx, candidates)

	assert.Empty(t, f.outcomes.records)
	assert.Equal(t, 0, f.buyer.calls)
}

func TestPipeline_BuyKnown(t *testing.T) {
	f := newPipelineFixture(t, nil)

	require.NoError(t, f.registry.Upsert(context.Background(), f.resolver.keys))
	require.NoError(t, f.pipeline.BuyKnown(context.Background(), f.mint))

	rec := f.outcomes.last(t)
	assert.Equal(t, domain.OutcomeSettled, rec.Status)
	assert.Equal(t, 1, f.buyer.calls)
}

func TestPipeline_BuyKnownMissingMint(t *testing.T) {
	f := newPipelineFixture(t, nil)

	err := f.pipeline.BuyKnown(context.Background(), "unknown-mint")
	assert.Error(t, err)
	assert.Equal(t, 0, f.buyer.calls)
}
