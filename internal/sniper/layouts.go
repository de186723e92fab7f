package sniper

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// Serialized account sizes.
const (
	liquidityStateV4Size = 752
	marketStateV3Size    = 388
)

// liquidityStateV4 is the decoded subset of a Raydium AMM v4 pool account.
type liquidityStateV4 struct {
	BaseDecimals  uint64
	QuoteDecimals uint64
	BaseVault     string
	QuoteVault    string
	BaseMint      string
	QuoteMint     string
	LPMint        string
	OpenOrders    string
	MarketID      string
	MarketProgram string
	TargetOrders  string
	WithdrawQueue string
	LPVault       string
}

// marketStateV3 is the decoded subset of an OpenBook v3 market account.
type marketStateV3 struct {
	OwnAddress       string
	VaultSignerNonce uint64
	BaseMint         string
	QuoteMint        string
	BaseVault        string
	QuoteVault       string
	EventQueue       string
	Bids             string
	Asks             string
}

func pubkeyAt(data []byte, offset int) string {
	return base58.Encode(data[offset : offset+32])
}

func decodeLiquidityStateV4(data []byte) (*liquidityStateV4, error) {
	if len(data) < liquidityStateV4Size {
		return nil, fmt.Errorf("liquidity state: expected %d bytes, got %d", liquidityStateV4Size, len(data))
	}

	return &liquidityStateV4{
		BaseDecimals:  binary.LittleEndian.Uint64(data[32:40]),
		QuoteDecimals: binary.LittleEndian.Uint64(data[40:48]),
		BaseVault:     pubkeyAt(data, 336),
		QuoteVault:    pubkeyAt(data, 368),
		BaseMint:      pubkeyAt(data, 400),
		QuoteMint:     pubkeyAt(data, 432),
		LPMint:        pubkeyAt(data, 464),
		OpenOrders:    pubkeyAt(data, 496),
		MarketID:      pubkeyAt(data, 528),
		MarketProgram: pubkeyAt(data, 560),
		TargetOrders:  pubkeyAt(data, 592),
		WithdrawQueue: pubkeyAt(data, 624),
		LPVault:       pubkeyAt(data, 656),
	}, nil
}

func decodeMarketStateV3(data []byte) (*marketStateV3, error) {
	if len(data) < marketStateV3Size {
		return nil, fmt.Errorf("market state: expected %d bytes, got %d", marketStateV3Size, len(data))
	}

	// Bytes 0-4 are the "serum" ascii padding prefix.
	return &marketStateV3{
		OwnAddress:       pubkeyAt(data, 13),
		VaultSignerNonce: binary.LittleEndian.Uint64(data[45:53]),
		BaseMint:         pubkeyAt(data, 53),
		QuoteMint:        pubkeyAt(data, 85),
		BaseVault:        pubkeyAt(data, 117),
		QuoteVault:       pubkeyAt(data, 165),
		EventQueue:       pubkeyAt(data, 253),
		Bids:             pubkeyAt(data, 285),
		Asks:             pubkeyAt(data, 317),
	}, nil
}
