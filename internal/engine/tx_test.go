package engine

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"

	"raysniper/internal/solana"
)

func testKeypair(t *testing.T) *solana.Keypair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	kp, err := solana.KeypairFromBase58(base58.Encode(priv))
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	return kp
}

func randomPubkey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base58.Encode(pub)
}

func testBlockhash(t *testing.T) string {
	t.Helper()
	return randomPubkey(t)
}

func TestAppendCompactU16(t *testing.T) {
	cases := []struct {
		value uint16
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tc := range cases {
		got := appendCompactU16(nil, tc.value)
		if len(got) != len(tc.want) {
			t.Errorf("encode %d: expected %v, got %v", tc.value, tc.want, got)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("encode %d: expected %v, got %v", tc.value, tc.want, got)
				break
			}
		}

		decoded, n, err := readCompactU16(got)
		if err != nil {
			t.Errorf("decode %v: %v", got, err)
			continue
		}
		if decoded != tc.value || n != len(tc.want) {
			t.Errorf("decode %v: expected (%d, %d), got (%d, %d)", got, tc.value, len(tc.want), decoded, n)
		}
	}
}

func TestNewTransaction_SignAndVerify(t *testing.T) {
	wallet := testKeypair(t)
	dest := randomPubkey(t)

	instrs := []Instruction{systemTransfer(wallet.PublicKey(), dest, 1000)}

	tx, err := NewTransaction(wallet.PublicKey(), instrs, testBlockhash(t))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Sign(wallet)

	raw, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	numSigs, offset, err := readCompactU16(raw)
	if err != nil {
		t.Fatalf("read signature count: %v", err)
	}
	if numSigs != 1 {
		t.Fatalf("expected 1 signature, got %d", numSigs)
	}

	message := raw[offset+64:]
	if message[0] != versionedMessagePrefix {
		t.Errorf("expected v0 prefix 0x80, got 0x%02x", message[0])
	}

	pubRaw, err := solana.DecodePubkey(wallet.PublicKey())
	if err != nil {
		t.Fatalf("decode pubkey: %v", err)
	}
	sig := raw[offset : offset+64]
	if !ed25519.Verify(ed25519.PublicKey(pubRaw), message, sig) {
		t.Error("signature does not verify over the message")
	}

	if tx.Signature() != base58.Encode(sig) {
		t.Error("Signature() must return the payer signature in base58")
	}
}

func TestNewTransaction_HeaderCounts(t *testing.T) {
	wallet := testKeypair(t)
	dest := randomPubkey(t)

	instrs := []Instruction{
		setComputeUnitLimit(200_000),
		systemTransfer(wallet.PublicKey(), dest, 1000),
	}

	tx, err := NewTransaction(wallet.PublicKey(), instrs, testBlockhash(t))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	msg := tx.message
	// prefix, then numRequiredSignatures, numReadonlySigned, numReadonlyUnsigned
	if msg[1] != 1 {
		t.Errorf("expected 1 required signature, got %d", msg[1])
	}
	if msg[2] != 0 {
		t.Errorf("expected 0 readonly signed, got %d", msg[2])
	}
	// dest is writable; the two programs are readonly unsigned
	if msg[3] != 2 {
		t.Errorf("expected 2 readonly unsigned, got %d", msg[3])
	}
}

func TestNewTransaction_PayerFirst(t *testing.T) {
	wallet := testKeypair(t)
	dest := randomPubkey(t)

	tx, err := NewTransaction(wallet.PublicKey(), []Instruction{
		systemTransfer(wallet.PublicKey(), dest, 1),
	}, testBlockhash(t))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	// key array starts after prefix + header + compact length byte
	firstKey := base58.Encode(tx.message[5:37])
	if firstKey != wallet.PublicKey() {
		t.Errorf("expected payer as first key, got %s", firstKey)
	}
}

func TestSerialize_MissingSignature(t *testing.T) {
	wallet := testKeypair(t)

	tx, err := NewTransaction(wallet.PublicKey(), []Instruction{
		systemTransfer(wallet.PublicKey(), randomPubkey(t), 1),
	}, testBlockhash(t))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	if _, err := tx.Serialize(); err == nil {
		t.Error("expected error serializing unsigned transaction")
	}
}

func TestCompileKeys_MergesPrivileges(t *testing.T) {
	payer := randomPubkey(t)
	shared := randomPubkey(t)

	instrs := []Instruction{
		{ProgramID: solana.SystemProgram, Accounts: []AccountMeta{{Pubkey: shared}}},
		{ProgramID: solana.TokenProgram, Accounts: []AccountMeta{{Pubkey: shared, IsWritable: true}}},
	}

	keys := compileKeys(payer, instrs)

	var found *compiledKey
	for i := range keys {
		if keys[i].pubkey == shared {
			found = &keys[i]
		}
	}
	if found == nil {
		t.Fatal("shared account missing from compiled keys")
	}
	if !found.writable {
		t.Error("writable reference must win when merging duplicates")
	}
}
