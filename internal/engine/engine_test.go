package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"raysniper/internal/domain"
	"raysniper/internal/solana"
)

type stubRPC struct {
	blockhashCalls  int
	lastValidHeight uint64
	blockHeight     uint64
	statuses        []*solana.SignatureStatus
	statusErr       error
}

func (s *stubRPC) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	s.blockhashCalls++
	return &solana.LatestBlockhash{
		Blockhash:            "DEhAasscXF4kEGxFgJ3bq4PpVGp5wyUxMRvn6TzGVHaw",
		LastValidBlockHeight: s.lastValidHeight,
	}, nil
}

func (s *stubRPC) GetBlockHeight(_ context.Context) (uint64, error) {
	return s.blockHeight, nil
}

func (s *stubRPC) GetSignatureStatuses(_ context.Context, sigs []string) ([]*solana.SignatureStatus, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.statuses, nil
}

type stubBroadcaster struct {
	calls    int
	accepted []int // per-call accepted relay count
	txs      []string
}

func (s *stubBroadcaster) Broadcast(_ context.Context, encodedTx string) int {
	s.calls++
	s.txs = append(s.txs, encodedTx)
	if s.calls <= len(s.accepted) {
		return s.accepted[s.calls-1]
	}
	return 0
}

// testBuyParamsFor returns buy params whose Owner matches the signing
// wallet, mirroring the production wiring in pipeline.go.
func testBuyParamsFor(t *testing.T, wallet *solana.Keypair) BuyParams {
	t.Helper()
	params := testBuyParams(t)
	params.Owner = wallet.PublicKey()
	return params
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRetries:          3,
		ConfirmTimeout:      2 * time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
	}
}

func confirmedStatus() []*solana.SignatureStatus {
	return []*solana.SignatureStatus{{ConfirmationStatus: "confirmed"}}
}

func TestEngine_BuySucceedsFirstAttempt(t *testing.T) {
	wallet := testKeypair(t)
	rpc := &stubRPC{statuses: confirmedStatus()}
	relays := &stubBroadcaster{accepted: []int{5}}

	eng := New(rpc, relays, testEngineConfig(), zerolog.Nop())

	sig, err := eng.Buy(context.Background(), wallet, testBuyParamsFor(t, wallet))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if sig == "" {
		t.Error("expected non-empty signature")
	}
	if relays.calls != 1 {
		t.Errorf("expected 1 broadcast, got %d", relays.calls)
	}
	if rpc.blockhashCalls != 1 {
		t.Errorf("expected 1 blockhash fetch, got %d", rpc.blockhashCalls)
	}
}

func TestEngine_BuyRetriesWithFreshBlockhash(t *testing.T) {
	wallet := testKeypair(t)
	rpc := &stubRPC{statuses: confirmedStatus()}
	relays := &stubBroadcaster{accepted: []int{0, 0, 2}}

	eng := New(rpc, relays, testEngineConfig(), zerolog.Nop())

	sig, err := eng.Buy(context.Background(), wallet, testBuyParamsFor(t, wallet))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if sig == "" {
		t.Error("expected signature from the final attempt")
	}
	if relays.calls != 3 {
		t.Errorf("expected 3 broadcasts, got %d", relays.calls)
	}
	// Every attempt must pick up a fresh blockhash.
	if rpc.blockhashCalls != 3 {
		t.Errorf("expected 3 blockhash fetches, got %d", rpc.blockhashCalls)
	}
}

func TestEngine_BuyExhaustsRetries(t *testing.T) {
	wallet := testKeypair(t)
	rpc := &stubRPC{statuses: confirmedStatus()}
	relays := &stubBroadcaster{accepted: []int{0, 0, 0}}

	eng := New(rpc, relays, testEngineConfig(), zerolog.Nop())

	_, err := eng.Buy(context.Background(), wallet, testBuyParamsFor(t, wallet))
	if !errors.Is(err, domain.ErrBroadcastExhausted) {
		t.Fatalf("expected ErrBroadcastExhausted, got %v", err)
	}
	if relays.calls != 3 {
		t.Errorf("expected 3 broadcasts, got %d", relays.calls)
	}
}

func TestEngine_ConfirmErrorNotRetried(t *testing.T) {
	wallet := testKeypair(t)
	rpc := &stubRPC{statuses: []*solana.SignatureStatus{{
		ConfirmationStatus: "processed",
		Err:                map[string]interface{}{"InstructionError": "custom"},
	}}}
	relays := &stubBroadcaster{accepted: []int{3}}

	eng := New(rpc, relays, testEngineConfig(), zerolog.Nop())

	sig, err := eng.Buy(context.Background(), wallet, testBuyParamsFor(t, wallet))

	var confirmErr *domain.ConfirmError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("expected ConfirmError, got %v", err)
	}
	// The signature must survive the error path; the tx may still land.
	if sig == "" || confirmErr.Signature != sig {
		t.Error("signature must be preserved on confirmation failure")
	}
	if relays.calls != 1 {
		t.Errorf("an accepted broadcast must never be retried, got %d broadcasts", relays.calls)
	}
}

func TestEngine_RetriesReuseInstructionList(t *testing.T) {
	wallet := testKeypair(t)
	rpc := &stubRPC{statuses: confirmedStatus()}
	relays := &stubBroadcaster{accepted: []int{0, 0, 0}}

	params := testBuyParamsFor(t, wallet)
	params.TipAccounts = nil
	for i := 0; i < 8; i++ {
		params.TipAccounts = append(params.TipAccounts, randomPubkey(t))
	}

	eng := New(rpc, relays, testEngineConfig(), zerolog.Nop())

	_, err := eng.Buy(context.Background(), wallet, params)
	if !errors.Is(err, domain.ErrBroadcastExhausted) {
		t.Fatalf("expected ErrBroadcastExhausted, got %v", err)
	}
	if len(relays.txs) != 3 {
		t.Fatalf("expected 3 broadcast payloads, got %d", len(relays.txs))
	}
	// The stub hands out a stable blockhash, so identical payloads prove
	// the instruction list (tip recipient included) is built exactly once.
	for i := 1; i < len(relays.txs); i++ {
		if relays.txs[i] != relays.txs[0] {
			t.Errorf("attempt %d payload differs; instructions must not be rebuilt per attempt", i+1)
		}
	}
}

func TestEngine_BuildFailureReturnsBeforeBroadcast(t *testing.T) {
	wallet := testKeypair(t)
	rpc := &stubRPC{statuses: confirmedStatus()}
	relays := &stubBroadcaster{}

	params := testBuyParamsFor(t, wallet)
	params.TipAccounts = nil

	eng := New(rpc, relays, testEngineConfig(), zerolog.Nop())

	_, err := eng.Buy(context.Background(), wallet, params)
	if err == nil {
		t.Fatal("expected build error")
	}
	if errors.Is(err, domain.ErrBroadcastExhausted) {
		t.Error("build failures must not report as broadcast exhaustion")
	}
	if rpc.blockhashCalls != 0 || relays.calls != 0 {
		t.Errorf("build failure must not reach the network: %d blockhash fetches, %d broadcasts",
			rpc.blockhashCalls, relays.calls)
	}
}

func TestEngine_ConfirmStopsAtBlockhashExpiry(t *testing.T) {
	wallet := testKeypair(t)
	rpc := &stubRPC{
		lastValidHeight: 100,
		blockHeight:     150,
		// Status stays below confirmed commitment.
		statuses: []*solana.SignatureStatus{{ConfirmationStatus: "processed"}},
	}
	relays := &stubBroadcaster{accepted: []int{1}}

	cfg := testEngineConfig()
	cfg.ConfirmTimeout = 30 * time.Second

	eng := New(rpc, relays, cfg, zerolog.Nop())

	start := time.Now()
	sig, err := eng.Buy(context.Background(), wallet, testBuyParamsFor(t, wallet))

	var confirmErr *domain.ConfirmError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("expected ConfirmError, got %v", err)
	}
	if !strings.Contains(confirmErr.Err.Error(), "expired") {
		t.Errorf("expected blockhash expiry, got %v", confirmErr.Err)
	}
	if sig == "" {
		t.Error("signature must be returned when the validity window expires")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("expiry must end confirmation well before the hard timeout")
	}
}

func TestEngine_ConfirmTimeout(t *testing.T) {
	wallet := testKeypair(t)
	// Status stays pending forever.
	rpc := &stubRPC{statuses: []*solana.SignatureStatus{{ConfirmationStatus: "processed"}}}
	relays := &stubBroadcaster{accepted: []int{1}}

	cfg := testEngineConfig()
	cfg.ConfirmTimeout = 50 * time.Millisecond

	eng := New(rpc, relays, cfg, zerolog.Nop())

	sig, err := eng.Buy(context.Background(), wallet, testBuyParamsFor(t, wallet))

	var confirmErr *domain.ConfirmError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("expected ConfirmError on timeout, got %v", err)
	}
	if sig == "" {
		t.Error("signature must be returned on confirmation timeout")
	}
}
