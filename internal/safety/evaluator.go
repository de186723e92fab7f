// Package safety runs rug-pull heuristics against a candidate token before
// any funds move. Checks run in a fixed order and short-circuit on the
// first dangerous finding.
package safety

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"raysniper/internal/domain"
	"raysniper/internal/solana"
)

// RaydiumCustodyAccount holds pooled liquidity and is excluded from holder
// concentration math.
const RaydiumCustodyAccount = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"

// RPC is the client surface the evaluator needs.
type RPC interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAccountBalance, error)
	GetMultipleParsedAccounts(ctx context.Context, pubkeys []string) ([]*solana.ParsedTokenAccount, error)
	GetParsedTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]*solana.ParsedTokenAccount, error)
}

// Thresholds bound each heuristic. Percentages are 0-100.
type Thresholds struct {
	MaxCreatorPct      float64
	MaxTopHoldersPct   float64
	MaxSingleHolderPct float64
	TopHolderCount     int
}

// Evaluator runs the check sequence. Results are computed fresh per call;
// nothing is cached between candidates.
type Evaluator struct {
	rpc        RPC
	thresholds Thresholds
	log        zerolog.Logger
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(rpc RPC, thresholds Thresholds, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		rpc:        rpc,
		thresholds: thresholds,
		log:        log.With().Str("component", "safety").Logger(),
	}
}

// Evaluate runs all checks against mint, attributing creator-held supply to
// creator. The first dangerous finding wins; an inconclusive check yields
// an indeterminate verdict, which callers must treat as "do not buy".
func (e *Evaluator) Evaluate(ctx context.Context, mint, creator string) domain.SafetyResult {
	mintInfo, result := e.checkAuthorities(ctx, mint)
	if result != nil {
		return *result
	}

	supply := decimal.NewFromUint64(mintInfo.Supply)
	if supply.IsZero() {
		return domain.DangerousResult("zero token supply")
	}

	if result := e.checkCreatorShare(ctx, mint, creator, supply); result != nil {
		return *result
	}

	if result := e.checkHolderConcentration(ctx, mint, supply); result != nil {
		return *result
	}

	return domain.SafeResult()
}

// checkAuthorities fetches the mint account and rejects tokens whose mint
// or freeze authority is still live. Returns the decoded mint for reuse.
func (e *Evaluator) checkAuthorities(ctx context.Context, mint string) (*solana.Mint, *domain.SafetyResult) {
	info, err := e.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, resultPtr(domain.IndeterminateResult(fmt.Errorf("fetch mint account: %w", err)))
	}
	if info == nil {
		return nil, resultPtr(domain.IndeterminateResult(fmt.Errorf("mint %s: %w", mint, domain.ErrMissingAccount)))
	}

	decoded, err := solana.ParseMint(info.Data)
	if err != nil {
		return nil, resultPtr(domain.IndeterminateResult(&domain.DecodeError{Account: mint, Err: err}))
	}

	if decoded.HasMintAuthority {
		return nil, resultPtr(domain.DangerousResult("mint authority not renounced"))
	}
	if decoded.HasFreezeAuthority {
		return nil, resultPtr(domain.DangerousResult("freeze authority not renounced"))
	}

	return decoded, nil
}

// checkCreatorShare compares the creator's balance against total supply.
// A creator with no token account at all is suspicious enough to refuse.
func (e *Evaluator) checkCreatorShare(ctx context.Context, mint, creator string, supply decimal.Decimal) *domain.SafetyResult {
	accounts, err := e.rpc.GetParsedTokenAccountsByOwner(ctx, creator, mint)
	if err != nil {
		return resultPtr(domain.IndeterminateResult(fmt.Errorf("fetch creator accounts: %w", err)))
	}
	if len(accounts) == 0 {
		return resultPtr(domain.IndeterminateResult(fmt.Errorf("creator %s token account: %w", creator, domain.ErrMissingAccount)))
	}

	balance := decimal.Zero
	for _, acct := range accounts {
		amt, err := decimal.NewFromString(acct.TokenAmount.Amount)
		if err != nil {
			return resultPtr(domain.IndeterminateResult(fmt.Errorf("parse creator balance: %w", err)))
		}
		balance = balance.Add(amt)
	}

	pct := balance.Div(supply).Mul(decimal.NewFromInt(100))
	e.log.Debug().Str("mint", mint).Str("creator_pct", pct.StringFixed(2)).Msg("creator share")

	if pct.GreaterThan(decimal.NewFromFloat(e.thresholds.MaxCreatorPct)) {
		return resultPtr(domain.DangerousResult(fmt.Sprintf("creator holds %s%% of supply", pct.StringFixed(2))))
	}
	return nil
}

// checkHolderConcentration inspects the largest token accounts, resolves
// their owners, and bounds both the combined and the single largest share.
// The pool's own custody account does not count.
func (e *Evaluator) checkHolderConcentration(ctx context.Context, mint string, supply decimal.Decimal) *domain.SafetyResult {
	largest, err := e.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return resultPtr(domain.IndeterminateResult(fmt.Errorf("fetch largest accounts: %w", err)))
	}
	if len(largest) == 0 {
		return nil
	}

	addresses := make([]string, len(largest))
	for i, acct := range largest {
		addresses[i] = acct.Address
	}

	owners, err := e.rpc.GetMultipleParsedAccounts(ctx, addresses)
	if err != nil {
		return resultPtr(domain.IndeterminateResult(fmt.Errorf("resolve holder owners: %w", err)))
	}

	hundred := decimal.NewFromInt(100)
	maxSingle := decimal.NewFromFloat(e.thresholds.MaxSingleHolderPct)
	total := decimal.Zero
	counted := 0

	for i, acct := range largest {
		if counted >= e.thresholds.TopHolderCount {
			break
		}
		if i < len(owners) && owners[i] != nil && owners[i].Owner == RaydiumCustodyAccount {
			continue
		}

		amt, err := decimal.NewFromString(acct.Amount)
		if err != nil {
			return resultPtr(domain.IndeterminateResult(fmt.Errorf("parse holder balance: %w", err)))
		}

		pct := amt.Div(supply).Mul(hundred)
		if pct.GreaterThan(maxSingle) {
			return resultPtr(domain.DangerousResult(fmt.Sprintf("single holder owns %s%% of supply", pct.StringFixed(2))))
		}

		total = total.Add(pct)
		counted++
	}

	e.log.Debug().Str("mint", mint).Str("top_holders_pct", total.StringFixed(2)).Int("counted", counted).Msg("holder concentration")

	if total.GreaterThan(decimal.NewFromFloat(e.thresholds.MaxTopHoldersPct)) {
		return resultPtr(domain.DangerousResult(fmt.Sprintf("top %d holders own %s%% of supply", counted, total.StringFixed(2))))
	}
	return nil
}

func resultPtr(r domain.SafetyResult) *domain.SafetyResult { return &r }
