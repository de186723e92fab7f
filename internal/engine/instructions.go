// Package engine builds, signs, broadcasts, and confirms buy transactions.
package engine

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"raysniper/internal/domain"
	"raysniper/internal/solana"
)

// AccountMeta is one account reference inside an instruction.
type AccountMeta struct {
	Pubkey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation before compilation.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// Compute budget instruction tags.
const (
	computeBudgetSetLimit = 0x02
	computeBudgetSetPrice = 0x03
)

// SPL token instruction tags.
const (
	tokenInstrCloseAccount = 9
	tokenInstrSyncNative   = 17
)

// raydiumSwapBaseIn is the AMM v4 fixed-input swap tag.
const raydiumSwapBaseIn = 0x09

func setComputeUnitLimit(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = computeBudgetSetLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return Instruction{ProgramID: solana.ComputeBudgetProgram, Data: data}
}

func setComputeUnitPrice(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = computeBudgetSetPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: solana.ComputeBudgetProgram, Data: data}
}

func systemTransfer(from, to string, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2) // transfer
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return Instruction{
		ProgramID: solana.SystemProgram,
		Accounts: []AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: data,
	}
}

// createATAIdempotent creates owner's associated token account for mint if
// it does not already exist.
func createATAIdempotent(payer, owner, mint, ata string) Instruction {
	return Instruction{
		ProgramID: solana.AssociatedTokenProgram,
		Accounts: []AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: ata, IsWritable: true},
			{Pubkey: owner},
			{Pubkey: mint},
			{Pubkey: solana.SystemProgram},
			{Pubkey: solana.TokenProgram},
		},
		Data: []byte{1}, // CreateIdempotent
	}
}

func syncNative(account string) Instruction {
	return Instruction{
		ProgramID: solana.TokenProgram,
		Accounts:  []AccountMeta{{Pubkey: account, IsWritable: true}},
		Data:      []byte{tokenInstrSyncNative},
	}
}

func closeAccount(account, dest, owner string) Instruction {
	return Instruction{
		ProgramID: solana.TokenProgram,
		Accounts: []AccountMeta{
			{Pubkey: account, IsWritable: true},
			{Pubkey: dest, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
		},
		Data: []byte{tokenInstrCloseAccount},
	}
}

// raydiumSwap builds the fixed-input swap against the pool. minAmountOut
// zero accepts any fill.
func raydiumSwap(keys *domain.PoolKeySet, userSource, userDest, owner string, amountIn, minAmountOut uint64) Instruction {
	data := make([]byte, 17)
	data[0] = raydiumSwapBaseIn
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minAmountOut)

	return Instruction{
		ProgramID: keys.ProgramID,
		Accounts: []AccountMeta{
			{Pubkey: solana.TokenProgram},
			{Pubkey: keys.ID, IsWritable: true},
			{Pubkey: keys.Authority},
			{Pubkey: keys.OpenOrders, IsWritable: true},
			{Pubkey: keys.TargetOrders, IsWritable: true},
			{Pubkey: keys.BaseVault, IsWritable: true},
			{Pubkey: keys.QuoteVault, IsWritable: true},
			{Pubkey: keys.MarketProgramID},
			{Pubkey: keys.MarketID, IsWritable: true},
			{Pubkey: keys.MarketBids, IsWritable: true},
			{Pubkey: keys.MarketAsks, IsWritable: true},
			{Pubkey: keys.MarketEventQueue, IsWritable: true},
			{Pubkey: keys.MarketBaseVault, IsWritable: true},
			{Pubkey: keys.MarketQuoteVault, IsWritable: true},
			{Pubkey: keys.MarketAuthority},
			{Pubkey: userSource, IsWritable: true},
			{Pubkey: userDest, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// BuyParams carries everything needed to assemble one buy transaction.
type BuyParams struct {
	Keys             *domain.PoolKeySet
	Owner            string
	AmountLamports   uint64
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	TipLamports      uint64
	TipAccounts      []string
	SupportFeeTo     string // empty disables the support fee
}

// supportFeeDivisor takes 1% of the buy amount.
const supportFeeDivisor = 100

// BuildBuyInstructions assembles the full buy sequence: budget setup, SOL
// wrapping, the swap, WSOL unwinding, and the tip. The tip recipient is
// picked at random from TipAccounts per call.
func BuildBuyInstructions(p BuyParams) ([]Instruction, error) {
	if p.Keys.QuoteMint != solana.WSOL {
		return nil, fmt.Errorf("pool %s: %w", p.Keys.ID, domain.ErrUnsupportedQuote)
	}
	if len(p.TipAccounts) == 0 {
		return nil, fmt.Errorf("no tip accounts configured")
	}

	wsolATA, err := solana.AssociatedTokenAddress(p.Owner, solana.WSOL)
	if err != nil {
		return nil, err
	}
	tokenATA, err := solana.AssociatedTokenAddress(p.Owner, p.Keys.BaseMint)
	if err != nil {
		return nil, err
	}

	tipTo := p.TipAccounts[rand.Intn(len(p.TipAccounts))]

	instrs := []Instruction{
		setComputeUnitLimit(p.ComputeUnitLimit),
		setComputeUnitPrice(p.ComputeUnitPrice),
		createATAIdempotent(p.Owner, p.Owner, solana.WSOL, wsolATA),
		systemTransfer(p.Owner, wsolATA, p.AmountLamports),
		syncNative(wsolATA),
		createATAIdempotent(p.Owner, p.Owner, p.Keys.BaseMint, tokenATA),
		raydiumSwap(p.Keys, wsolATA, tokenATA, p.Owner, p.AmountLamports, 0),
		closeAccount(wsolATA, p.Owner, p.Owner),
		systemTransfer(p.Owner, tipTo, p.TipLamports),
	}

	if p.SupportFeeTo != "" {
		instrs = append(instrs, systemTransfer(p.Owner, p.SupportFeeTo, p.AmountLamports/supportFeeDivisor))
	}

	return instrs, nil
}
