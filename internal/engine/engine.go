package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"raysniper/internal/domain"
	"raysniper/internal/solana"
)

// rpcClient is the RPC surface the engine needs.
type rpcClient interface {
	GetLatestBlockhash(ctx context.Context) (*solana.LatestBlockhash, error)
	GetBlockHeight(ctx context.Context) (uint64, error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error)
}

// broadcaster submits one signed transaction to all relays.
type broadcaster interface {
	Broadcast(ctx context.Context, encodedTx string) int
}

// EngineConfig bounds retries and confirmation polling.
type EngineConfig struct {
	MaxRetries          int
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
}

// DefaultEngineConfig returns the default execution bounds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRetries:          3,
		ConfirmTimeout:      60 * time.Second,
		ConfirmPollInterval: 2 * time.Second,
	}
}

// Engine drives a buy from instruction assembly through confirmation. The
// instruction list is built once; each attempt fetches a fresh blockhash,
// recompiles and re-signs the message over that same list, and fans it out.
// An attempt accepted by any relay moves to confirmation and is never
// retried, because the transaction may land regardless of what the
// confirmation poll reports.
type Engine struct {
	rpc    rpcClient
	relays broadcaster
	config EngineConfig
	log    zerolog.Logger
}

// New creates an engine.
func New(rpc rpcClient, relays broadcaster, config EngineConfig, log zerolog.Logger) *Engine {
	return &Engine{
		rpc:    rpc,
		relays: relays,
		config: config,
		log:    log.With().Str("component", "engine").Logger(),
	}
}

// Buy executes the full sequence for one candidate and returns the
// confirmed signature. ErrBroadcastExhausted means no relay ever accepted;
// a ConfirmError means the transaction went out but its fate is unknown.
func (e *Engine) Buy(ctx context.Context, wallet *solana.Keypair, params BuyParams) (string, error) {
	instrs, err := BuildBuyInstructions(params)
	if err != nil {
		return "", err
	}

	var lastErr error

	for attempt := 1; attempt <= e.config.MaxRetries; attempt++ {
		blockhash, err := e.rpc.GetLatestBlockhash(ctx)
		if err != nil {
			lastErr = fmt.Errorf("fetch blockhash: %w", err)
			e.log.Warn().Err(err).Int("attempt", attempt).Msg("blockhash fetch failed")
			continue
		}

		tx, err := NewTransaction(wallet.PublicKey(), instrs, blockhash.Blockhash)
		if err != nil {
			return "", fmt.Errorf("compile transaction: %w", err)
		}
		tx.Sign(wallet)

		encoded, err := tx.Base58()
		if err != nil {
			return "", err
		}

		sig := tx.Signature()
		e.log.Info().Int("attempt", attempt).Str("signature", sig).Str("mint", params.Keys.BaseMint).Msg("broadcasting buy")

		if e.relays.Broadcast(ctx, encoded) == 0 {
			lastErr = fmt.Errorf("attempt %d: no relay accepted", attempt)
			continue
		}

		if err := e.confirm(ctx, sig, blockhash.LastValidBlockHeight); err != nil {
			return sig, &domain.ConfirmError{Signature: sig, Err: err}
		}

		e.log.Info().Str("signature", sig).Msg("buy confirmed")
		return sig, nil
	}

	return "", fmt.Errorf("%w: %v", domain.ErrBroadcastExhausted, lastErr)
}

// confirm polls signature status until confirmed commitment, the blockhash
// validity window elapses, or the timeout fires. ConfirmTimeout stays as a
// hard cap in case block height queries keep failing.
func (e *Engine) confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.config.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		statuses, err := e.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 {
			status := statuses[0]
			if status != nil && status.Err != nil {
				return fmt.Errorf("transaction failed on chain: %v", status.Err)
			}
			if status.Confirmed() {
				return nil
			}
		}

		if height, err := e.rpc.GetBlockHeight(ctx); err == nil && height > lastValidBlockHeight {
			return fmt.Errorf("blockhash expired at height %d, last valid %d", height, lastValidBlockHeight)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation timed out; transaction may still land: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
