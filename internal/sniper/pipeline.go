package sniper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"raysniper/internal/config"
	"raysniper/internal/domain"
	"raysniper/internal/engine"
	"raysniper/internal/registry"
	"raysniper/internal/solana"
)

// poolResolver resolves a market ID into a full key set.
type poolResolver interface {
	Resolve(ctx context.Context, marketID string) (*domain.PoolKeySet, error)
}

// safetyEvaluator classifies a candidate token.
type safetyEvaluator interface {
	Evaluate(ctx context.Context, mint, creator string) domain.SafetyResult
}

// poolBuyer executes the direct swap path.
type poolBuyer interface {
	Buy(ctx context.Context, wallet *solana.Keypair, params engine.BuyParams) (string, error)
}

// fallbackBuyer executes the aggregator path when the direct path fails.
type fallbackBuyer interface {
	Buy(ctx context.Context, wallet *solana.Keypair, outputMint string, amountLamports uint64, slippageBps int) (string, error)
}

// outcomeSink records what happened to each candidate.
type outcomeSink interface {
	Record(ctx context.Context, rec *domain.OutcomeRecord) error
}

// allowlist gates buys on operator-curated mints.
type allowlist interface {
	Contains(mint string) bool
	Remove(mint string) error
}

// Execution provider names recorded in outcomes.
const (
	ProviderRaydium = "raydium"
	ProviderJupiter = "jupiter"
)

// PipelineOptions carries the static knobs; runtime-mutable values come
// from the RuntimeHolder per candidate.
type PipelineOptions struct {
	Runtime          *config.RuntimeHolder
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	TipAccounts      []string
	SupportFeeTo     string // empty disables the support fee
	SafetyEnabled    bool
	SnipeListEnabled bool
}

// Pipeline runs each candidate from resolution through outcome recording.
// Candidates are independent and processed concurrently.
type Pipeline struct {
	resolver poolResolver
	registry registry.Store
	safety   safetyEvaluator
	buyer    poolBuyer
	fallback fallbackBuyer
	outcomes outcomeSink
	list     allowlist
	opts     PipelineOptions
	log      zerolog.Logger

	wg sync.WaitGroup
}

// NewPipeline wires the candidate processing stages together.
func NewPipeline(
	resolver poolResolver,
	reg registry.Store,
	safety safetyEvaluator,
	buyer poolBuyer,
	fallback fallbackBuyer,
	outcomes outcomeSink,
	list allowlist,
	opts PipelineOptions,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		registry: reg,
		safety:   safety,
		buyer:    buyer,
		fallback: fallback,
		outcomes: outcomes,
		list:     list,
		opts:     opts,
		log:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Run consumes candidates until ctx is cancelled or the channel closes,
// then waits for in-flight candidates to finish.
func (p *Pipeline) Run(ctx context.Context, candidates <-chan domain.CandidateEvent) {
	defer p.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-candidates:
			if !ok {
				return
			}
			p.wg.Add(1)
			go func(ev domain.CandidateEvent) {
				defer p.wg.Done()
				p.handleCandidate(ctx, ev)
			}(ev)
		}
	}
}

func (p *Pipeline) handleCandidate(ctx context.Context, ev domain.CandidateEvent) {
	marketID, ok := ExtractMarketID(ev.Logs)
	if !ok {
		// Fee activity that was not a pool creation.
		return
	}

	log := p.log.With().Str("signature", ev.Signature).Str("market", marketID).Logger()

	keys, err := p.resolver.Resolve(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedQuote) {
			log.Info().Msg("pool does not quote in SOL, skipping")
			p.record(ctx, &domain.OutcomeRecord{
				Status: domain.OutcomeSkipped,
				Reason: err.Error(),
			}, ev.ObservedAt)
			return
		}
		log.Error().Err(err).Msg("pool resolution failed")
		p.record(ctx, &domain.OutcomeRecord{
			Status: domain.OutcomeFailed,
			Reason: err.Error(),
		}, ev.ObservedAt)
		return
	}

	if err := p.registry.Upsert(ctx, keys); err != nil {
		// The buy can still proceed without persistence.
		log.Warn().Err(err).Msg("registry upsert failed")
	}

	rec := &domain.OutcomeRecord{
		BaseMint: keys.BaseMint,
		Pool:     keys.ID,
	}

	if p.opts.SnipeListEnabled && !p.list.Contains(keys.BaseMint) {
		log.Info().Str("mint", keys.BaseMint).Msg("mint not in snipe list, skipping")
		rec.Status = domain.OutcomeSkipped
		rec.Reason = "not in snipe list"
		p.record(ctx, rec, ev.ObservedAt)
		return
	}

	if p.opts.SafetyEnabled {
		result := p.safety.Evaluate(ctx, keys.BaseMint, ev.Creator)
		rec.Verdict = result.Verdict.String()
		if !result.Safe() {
			reason := result.Reason
			if result.Err != nil {
				reason = result.Err.Error()
			}
			log.Info().Str("verdict", rec.Verdict).Str("reason", reason).Msg("candidate rejected")
			rec.Status = domain.OutcomeSkipped
			rec.Reason = reason
			p.record(ctx, rec, ev.ObservedAt)
			return
		}
	}

	p.executeBuy(ctx, keys, rec, ev.ObservedAt, log)
}

// BuyKnown executes a buy for a mint whose pool was already resolved and
// persisted. Driven by operator requests over the control bus.
func (p *Pipeline) BuyKnown(ctx context.Context, mint string) error {
	keys, err := p.registry.Get(ctx, mint)
	if err != nil {
		return fmt.Errorf("load pool keys: %w", err)
	}
	if keys == nil {
		return fmt.Errorf("mint %s: no resolved pool in registry", mint)
	}

	rec := &domain.OutcomeRecord{
		BaseMint: keys.BaseMint,
		Pool:     keys.ID,
	}
	p.executeBuy(ctx, keys, rec, time.Now(), p.log.With().Str("mint", mint).Logger())
	return nil
}

// executeBuy runs the direct path, falls back to the aggregator when it
// fails before the transaction is sent, and records the outcome.
func (p *Pipeline) executeBuy(ctx context.Context, keys *domain.PoolKeySet, rec *domain.OutcomeRecord, observedAt time.Time, log zerolog.Logger) {
	runtime := p.opts.Runtime.Snapshot()

	wallet, err := solana.KeypairFromBase58(runtime.WalletSecret)
	if err != nil {
		log.Error().Err(err).Msg("wallet secret unusable")
		rec.Status = domain.OutcomeFailed
		rec.Reason = "invalid wallet secret"
		p.record(ctx, rec, observedAt)
		return
	}

	params := engine.BuyParams{
		Keys:             keys,
		Owner:            wallet.PublicKey(),
		AmountLamports:   runtime.BuyAmountLamports,
		ComputeUnitLimit: p.opts.ComputeUnitLimit,
		ComputeUnitPrice: p.opts.ComputeUnitPrice,
		TipLamports:      runtime.TipLamports,
		TipAccounts:      p.opts.TipAccounts,
		SupportFeeTo:     p.opts.SupportFeeTo,
	}

	rec.Provider = ProviderRaydium
	sig, err := p.buyer.Buy(ctx, wallet, params)

	// Any direct-path failure escalates to the aggregator, except a sent
	// transaction whose fate is unknown.
	var confirmErr *domain.ConfirmError
	if err != nil && !errors.As(err, &confirmErr) {
		log.Warn().Err(err).Msg("direct path failed, falling back to aggregator")
		rec.Provider = ProviderJupiter
		sig, err = p.fallback.Buy(ctx, wallet, keys.BaseMint, runtime.BuyAmountLamports, runtime.SlippageBps)
	}

	rec.Signature = sig

	switch {
	case err == nil:
		log.Info().Str("signature", sig).Str("provider", rec.Provider).Msg("buy settled")
		rec.Status = domain.OutcomeSettled
		p.removeFromList(keys.BaseMint, log)
	case errors.As(err, &confirmErr):
		// Sent but unconfirmed; it may still land, so keep the signature.
		log.Warn().Err(err).Str("signature", confirmErr.Signature).Msg("buy unconfirmed")
		rec.Status = domain.OutcomeAmbiguous
		rec.Reason = err.Error()
	default:
		log.Error().Err(err).Msg("buy failed")
		rec.Status = domain.OutcomeFailed
		rec.Reason = err.Error()
	}

	p.record(ctx, rec, observedAt)
}

// removeFromList drops a bought mint so the entry fires only once.
func (p *Pipeline) removeFromList(mint string, log zerolog.Logger) {
	if !p.opts.SnipeListEnabled {
		return
	}
	if err := p.list.Remove(mint); err != nil {
		log.Warn().Err(err).Str("mint", mint).Msg("snipe list removal failed")
	}
}

func (p *Pipeline) record(ctx context.Context, rec *domain.OutcomeRecord, observedAt time.Time) {
	rec.ID = uuid.NewString()
	rec.TimestampMs = time.Now().UnixMilli()
	rec.LatencySeconds = time.Since(observedAt).Seconds()

	if err := p.outcomes.Record(ctx, rec); err != nil {
		p.log.Warn().Err(err).Msg("outcome record failed")
	}
}
