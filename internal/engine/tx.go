package engine

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"

	"raysniper/internal/solana"
)

// versionedMessagePrefix marks a v0 message.
const versionedMessagePrefix = 0x80

// appendCompactU16 writes v in the short-vec encoding used throughout the
// transaction wire format.
func appendCompactU16(buf []byte, v uint16) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// compiledKey tracks the merged privileges of one account across all
// instructions in a message.
type compiledKey struct {
	pubkey   string
	signer   bool
	writable bool
}

// compileKeys merges every account reference into the canonical message
// ordering: payer, writable signers, readonly signers, writable
// non-signers, readonly non-signers.
func compileKeys(payer string, instrs []Instruction) []compiledKey {
	merged := map[string]*compiledKey{
		payer: {pubkey: payer, signer: true, writable: true},
	}
	order := []string{payer}

	note := func(pubkey string, signer, writable bool) {
		k, ok := merged[pubkey]
		if !ok {
			k = &compiledKey{pubkey: pubkey}
			merged[pubkey] = k
			order = append(order, pubkey)
		}
		k.signer = k.signer || signer
		k.writable = k.writable || writable
	}

	for _, instr := range instrs {
		for _, acct := range instr.Accounts {
			note(acct.Pubkey, acct.IsSigner, acct.IsWritable)
		}
		note(instr.ProgramID, false, false)
	}

	var payerKey, writableSigners, roSigners, writable, readonly []compiledKey
	for _, pubkey := range order {
		k := *merged[pubkey]
		switch {
		case k.pubkey == payer:
			payerKey = append(payerKey, k)
		case k.signer && k.writable:
			writableSigners = append(writableSigners, k)
		case k.signer:
			roSigners = append(roSigners, k)
		case k.writable:
			writable = append(writable, k)
		default:
			readonly = append(readonly, k)
		}
	}

	out := payerKey
	out = append(out, writableSigners...)
	out = append(out, roSigners...)
	out = append(out, writable...)
	out = append(out, readonly...)
	return out
}

// Transaction is a compiled v0 message with its signature slots.
type Transaction struct {
	message    []byte
	numSigners int
	signatures [][]byte
}

// NewTransaction compiles instructions into a v0 message paid for and
// signed by payer.
func NewTransaction(payer string, instrs []Instruction, blockhash string) (*Transaction, error) {
	keys := compileKeys(payer, instrs)
	if len(keys) > 255 {
		return nil, fmt.Errorf("too many accounts: %d", len(keys))
	}

	index := make(map[string]byte, len(keys))
	numSigners, roSigned, roUnsigned := 0, 0, 0
	for i, k := range keys {
		index[k.pubkey] = byte(i)
		if k.signer {
			numSigners++
			if !k.writable {
				roSigned++
			}
		} else if !k.writable {
			roUnsigned++
		}
	}

	blockhashBytes, err := solana.DecodePubkey(blockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}

	var msg []byte
	msg = append(msg, versionedMessagePrefix)
	msg = append(msg, byte(numSigners), byte(roSigned), byte(roUnsigned))

	msg = appendCompactU16(msg, uint16(len(keys)))
	for _, k := range keys {
		raw, err := solana.DecodePubkey(k.pubkey)
		if err != nil {
			return nil, err
		}
		msg = append(msg, raw...)
	}

	msg = append(msg, blockhashBytes...)

	msg = appendCompactU16(msg, uint16(len(instrs)))
	for _, instr := range instrs {
		msg = append(msg, index[instr.ProgramID])
		msg = appendCompactU16(msg, uint16(len(instr.Accounts)))
		for _, acct := range instr.Accounts {
			msg = append(msg, index[acct.Pubkey])
		}
		msg = appendCompactU16(msg, uint16(len(instr.Data)))
		msg = append(msg, instr.Data...)
	}

	// No address table lookups.
	msg = appendCompactU16(msg, 0)

	return &Transaction{
		message:    msg,
		numSigners: numSigners,
		signatures: make([][]byte, numSigners),
	}, nil
}

// Sign fills the payer's signature slot.
func (t *Transaction) Sign(kp *solana.Keypair) {
	t.signatures[0] = kp.Sign(t.message)
}

// Signature returns the payer signature in base58, the form used as the
// transaction's identifier.
func (t *Transaction) Signature() string {
	if len(t.signatures) == 0 || t.signatures[0] == nil {
		return ""
	}
	return base58.Encode(t.signatures[0])
}

// Serialize returns the signed wire-format transaction.
func (t *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(appendCompactU16(nil, uint16(t.numSigners)))
	for i, sig := range t.signatures {
		if sig == nil {
			return nil, fmt.Errorf("missing signature %d", i)
		}
		buf.Write(sig)
	}
	buf.Write(t.message)
	return buf.Bytes(), nil
}

// Base64 returns the serialized transaction base64-encoded for RPC submission.
func (t *Transaction) Base64() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Base58 returns the serialized transaction base58-encoded for relay submission.
func (t *Transaction) Base58() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}
