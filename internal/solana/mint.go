package solana

import (
	"encoding/binary"
	"fmt"
)

// MintAccountSize is the serialized size of an SPL mint account.
const MintAccountSize = 82

// Mint is a decoded SPL token mint account.
type Mint struct {
	HasMintAuthority   bool
	Supply             uint64
	Decimals           uint8
	HasFreezeAuthority bool
}

// ParseMint decodes an SPL mint account's raw data.
func ParseMint(data []byte) (*Mint, error) {
	if len(data) < MintAccountSize {
		return nil, fmt.Errorf("mint account: expected %d bytes, got %d", MintAccountSize, len(data))
	}

	return &Mint{
		HasMintAuthority:   binary.LittleEndian.Uint32(data[0:4]) != 0,
		Supply:             binary.LittleEndian.Uint64(data[36:44]),
		Decimals:           data[44],
		HasFreezeAuthority: binary.LittleEndian.Uint32(data[46:50]) != 0,
	}, nil
}
