package config

import "sync/atomic"

// Runtime is the subset of configuration that may change while the process
// runs. Values are read as an immutable snapshot; updates replace the whole
// snapshot, last write wins.
type Runtime struct {
	BuyAmountLamports uint64
	SlippageBps       int
	TipLamports       uint64
	WalletSecret      string
	RPCEndpoint       string
}

// RuntimeHolder publishes Runtime snapshots to concurrent readers.
type RuntimeHolder struct {
	current atomic.Pointer[Runtime]
}

// NewRuntimeHolder seeds the holder from the loaded configuration.
func NewRuntimeHolder(cfg *Config) *RuntimeHolder {
	h := &RuntimeHolder{}
	h.current.Store(&Runtime{
		BuyAmountLamports: cfg.Buy.AmountLamports,
		SlippageBps:       cfg.Buy.SlippageBps,
		TipLamports:       cfg.Buy.TipLamports,
		WalletSecret:      cfg.Wallet.SecretKey,
		RPCEndpoint:       cfg.RPC.Endpoint,
	})
	return h
}

// Snapshot returns the current runtime values. The returned struct is a
// copy; callers may hold it for the duration of one buy attempt sequence.
func (h *RuntimeHolder) Snapshot() Runtime {
	return *h.current.Load()
}

// Update applies fn to a copy of the current snapshot and publishes the
// result. Not atomic across concurrent updaters beyond last-write-wins,
// which is the intended semantics for operator-driven changes.
func (h *RuntimeHolder) Update(fn func(*Runtime)) {
	next := *h.current.Load()
	fn(&next)
	h.current.Store(&next)
}
