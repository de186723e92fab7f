package sniper

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"raysniper/internal/domain"
	"raysniper/internal/solana"
)

// Raydium and OpenBook program addresses.
const (
	RaydiumAMMV4   = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	OpenBookMarket = "srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX"
)

// rayLogSize is the serialized init record length; other ray_log variants
// (swaps, deposits) have different sizes and are not pool creations.
const rayLogSize = 75

// ExtractMarketID scans transaction logs for the pool-init ray_log record
// and returns the embedded market ID as base58. Returns false when the logs
// carry no init record.
func ExtractMarketID(logs []string) (string, bool) {
	for _, line := range logs {
		if !strings.Contains(line, "ray_log") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		token := strings.Trim(fields[len(fields)-1], "'")

		raw, err := base64.StdEncoding.DecodeString(token)
		if err != nil || len(raw) != rayLogSize {
			continue
		}

		return base58.Encode(raw[43:75]), true
	}
	return "", false
}

// accountFetcher is the RPC surface the resolver needs.
type accountFetcher interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// ResolverConfig bounds the account polling loop. Freshly created accounts
// can lag behind the log notification by several slots.
type ResolverConfig struct {
	PollInitialDelay time.Duration
	PollMaxDelay     time.Duration
	PollTimeout      time.Duration
}

// DefaultResolverConfig returns the default polling bounds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		PollInitialDelay: 500 * time.Millisecond,
		PollMaxDelay:     5 * time.Second,
		PollTimeout:      90 * time.Second,
	}
}

// Resolver derives and fetches the full account set of a freshly created
// pool from nothing but its market ID.
type Resolver struct {
	rpc    accountFetcher
	config ResolverConfig
	log    zerolog.Logger
}

// NewResolver creates a resolver with the given polling bounds.
func NewResolver(rpc accountFetcher, config ResolverConfig, log zerolog.Logger) *Resolver {
	return &Resolver{
		rpc:    rpc,
		config: config,
		log:    log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve builds the normalized key set for the pool attached to marketID.
// The returned set always quotes in wrapped SOL; pools that cannot be
// oriented that way fail with ErrUnsupportedQuote.
func (r *Resolver) Resolve(ctx context.Context, marketID string) (*domain.PoolKeySet, error) {
	programBytes, err := solana.DecodePubkey(RaydiumAMMV4)
	if err != nil {
		return nil, err
	}
	marketBytes, err := solana.DecodePubkey(marketID)
	if err != nil {
		return nil, err
	}

	poolID, _, err := solana.FindProgramAddress(
		[][]byte{programBytes, marketBytes, []byte("amm_associated_seed")}, programBytes)
	if err != nil {
		return nil, fmt.Errorf("derive pool address: %w", err)
	}

	poolInfo, err := r.waitForAccount(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("pool account %s: %w", poolID, err)
	}
	pool, err := decodeLiquidityStateV4(poolInfo.Data)
	if err != nil {
		return nil, &domain.DecodeError{Account: poolID, Err: err}
	}

	marketInfo, err := r.waitForAccount(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market account %s: %w", marketID, err)
	}
	market, err := decodeMarketStateV3(marketInfo.Data)
	if err != nil {
		return nil, &domain.DecodeError{Account: marketID, Err: err}
	}

	keys := &domain.PoolKeySet{
		ID:            poolID,
		BaseMint:      pool.BaseMint,
		QuoteMint:     pool.QuoteMint,
		LPMint:        pool.LPMint,
		BaseDecimals:  int(pool.BaseDecimals),
		QuoteDecimals: int(pool.QuoteDecimals),
		Version:       4,

		ProgramID:     RaydiumAMMV4,
		OpenOrders:    pool.OpenOrders,
		TargetOrders:  pool.TargetOrders,
		BaseVault:     pool.BaseVault,
		QuoteVault:    pool.QuoteVault,
		WithdrawQueue: pool.WithdrawQueue,
		LPVault:       pool.LPVault,

		MarketVersion:    3,
		MarketProgramID:  pool.MarketProgram,
		MarketID:         marketID,
		MarketBaseVault:  market.BaseVault,
		MarketQuoteVault: market.QuoteVault,
		MarketBids:       market.Bids,
		MarketAsks:       market.Asks,
		MarketEventQueue: market.EventQueue,
	}

	if err := normalizeOrientation(keys); err != nil {
		return nil, err
	}

	keys.Authority, _, err = solana.FindProgramAddress([][]byte{[]byte("amm authority")}, programBytes)
	if err != nil {
		return nil, fmt.Errorf("derive amm authority: %w", err)
	}

	keys.MarketAuthority, err = deriveMarketAuthority(marketBytes, pool.MarketProgram, market.VaultSignerNonce)
	if err != nil {
		return nil, fmt.Errorf("derive market authority: %w", err)
	}

	r.log.Info().Str("pool", poolID).Str("base_mint", keys.BaseMint).Msg("pool keys resolved")
	return keys, nil
}

// normalizeOrientation flips the key set so wrapped SOL is always the quote
// side. Pool and market vault pairs rotate together with the mints.
func normalizeOrientation(keys *domain.PoolKeySet) error {
	if keys.BaseMint == solana.WSOL && keys.QuoteMint == solana.WSOL {
		return &domain.DecodeError{Account: keys.ID, Err: fmt.Errorf("both pool sides are wrapped SOL")}
	}

	if keys.BaseMint == solana.WSOL {
		keys.BaseMint, keys.QuoteMint = keys.QuoteMint, keys.BaseMint
		keys.BaseDecimals, keys.QuoteDecimals = keys.QuoteDecimals, keys.BaseDecimals
		keys.BaseVault, keys.QuoteVault = keys.QuoteVault, keys.BaseVault
		keys.MarketBaseVault, keys.MarketQuoteVault = keys.MarketQuoteVault, keys.MarketBaseVault
	}

	if keys.QuoteMint != solana.WSOL {
		return fmt.Errorf("pool %s: %w", keys.ID, domain.ErrUnsupportedQuote)
	}
	return nil
}

// deriveMarketAuthority computes the vault signer from the market's stored
// nonce; no bump search is involved.
func deriveMarketAuthority(marketBytes []byte, marketProgram string, nonce uint64) (string, error) {
	programBytes, err := solana.DecodePubkey(marketProgram)
	if err != nil {
		return "", err
	}

	nonceBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceBytes, nonce)

	return solana.CreateProgramAddress([][]byte{marketBytes, nonceBytes}, programBytes)
}

// waitForAccount polls until the account exists. The delay doubles from
// PollInitialDelay up to PollMaxDelay, and the whole wait is bounded by
// PollTimeout.
func (r *Resolver) waitForAccount(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.PollTimeout)
	defer cancel()

	delay := r.config.PollInitialDelay
	for {
		info, err := r.rpc.GetAccountInfo(ctx, pubkey)
		if err == nil && info != nil {
			return info, nil
		}
		if err != nil {
			r.log.Debug().Err(err).Str("account", pubkey).Msg("account fetch failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for account: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.config.PollMaxDelay {
			delay = r.config.PollMaxDelay
		}
	}
}
