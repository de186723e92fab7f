// Package configbus applies operator-issued runtime changes delivered over
// NATS. Updates are last-write-wins; in-flight buys keep the snapshot they
// started with.
package configbus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"raysniper/internal/config"
	"raysniper/internal/snipelist"
	"raysniper/internal/solana"
)

// Subjects the bus listens on. Payloads are plain text values.
const (
	SubjectSlippage        = "sniper.config.slippage"
	SubjectTip             = "sniper.config.tip"
	SubjectWallet          = "sniper.config.wallet"
	SubjectRPC             = "sniper.config.rpc"
	SubjectSnipeListAdd    = "sniper.snipelist.add"
	SubjectSnipeListRemove = "sniper.snipelist.remove"
	SubjectBuyRequest      = "sniper.buy.request"
)

// endpointSetter swaps the RPC endpoint used by subsequent calls.
type endpointSetter interface {
	SetEndpoint(endpoint string)
}

// buyTrigger executes a buy for a mint already resolved into the registry.
type buyTrigger interface {
	BuyKnown(ctx context.Context, mint string) error
}

// Bus subscribes to the control subjects and routes each message to its
// handler.
type Bus struct {
	conn    *nats.Conn
	runtime *config.RuntimeHolder
	rpc     endpointSetter
	list    *snipelist.List
	buyer   buyTrigger
	log     zerolog.Logger
}

// Connect dials NATS and subscribes to every control subject. Token may be
// empty for unauthenticated servers.
func Connect(url, token string, runtime *config.RuntimeHolder, rpc endpointSetter, list *snipelist.List, buyer buyTrigger, log zerolog.Logger) (*Bus, error) {
	opts := []nats.Option{nats.Name("raysniper")}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := &Bus{
		conn:    conn,
		runtime: runtime,
		rpc:     rpc,
		list:    list,
		buyer:   buyer,
		log:     log.With().Str("component", "configbus").Logger(),
	}

	subs := map[string]func([]byte) error{
		SubjectSlippage:        b.handleSlippage,
		SubjectTip:             b.handleTip,
		SubjectWallet:          b.handleWallet,
		SubjectRPC:             b.handleRPC,
		SubjectSnipeListAdd:    b.handleSnipeAdd,
		SubjectSnipeListRemove: b.handleSnipeRemove,
		SubjectBuyRequest:      b.handleBuyRequest,
	}

	for subject, handler := range subs {
		subject, handler := subject, handler
		if _, err := conn.Subscribe(subject, func(msg *nats.Msg) {
			if err := handler(msg.Data); err != nil {
				b.log.Warn().Err(err).Str("subject", subject).Msg("control message rejected")
			}
		}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}

	b.log.Info().Str("url", url).Msg("config bus connected")
	return b, nil
}

// Close drains the connection.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Drain()
	}
}

func (b *Bus) handleSlippage(data []byte) error {
	bps, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || bps < 0 || bps > 10_000 {
		return fmt.Errorf("invalid slippage bps %q", data)
	}
	b.runtime.Update(func(r *config.Runtime) { r.SlippageBps = bps })
	b.log.Info().Int("slippage_bps", bps).Msg("slippage updated")
	return nil
}

func (b *Bus) handleTip(data []byte) error {
	lamports, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tip lamports %q", data)
	}
	b.runtime.Update(func(r *config.Runtime) { r.TipLamports = lamports })
	b.log.Info().Uint64("tip_lamports", lamports).Msg("tip updated")
	return nil
}

func (b *Bus) handleWallet(data []byte) error {
	secret := strings.TrimSpace(string(data))
	kp, err := solana.KeypairFromBase58(secret)
	if err != nil {
		return fmt.Errorf("invalid wallet secret: %w", err)
	}
	b.runtime.Update(func(r *config.Runtime) { r.WalletSecret = secret })
	b.log.Info().Str("wallet", kp.PublicKey()).Msg("wallet rotated")
	return nil
}

func (b *Bus) handleRPC(data []byte) error {
	endpoint := strings.TrimSpace(string(data))
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("invalid rpc endpoint %q", endpoint)
	}
	b.runtime.Update(func(r *config.Runtime) { r.RPCEndpoint = endpoint })
	b.rpc.SetEndpoint(endpoint)
	b.log.Info().Str("endpoint", endpoint).Msg("rpc endpoint switched")
	return nil
}

func (b *Bus) handleSnipeAdd(data []byte) error {
	mint := strings.TrimSpace(string(data))
	if mint == "" {
		return fmt.Errorf("empty mint")
	}
	if err := b.list.Add(mint); err != nil {
		return err
	}
	b.log.Info().Str("mint", mint).Msg("snipe list entry added")
	return nil
}

func (b *Bus) handleSnipeRemove(data []byte) error {
	mint := strings.TrimSpace(string(data))
	if mint == "" {
		return fmt.Errorf("empty mint")
	}
	if err := b.list.Remove(mint); err != nil {
		return err
	}
	b.log.Info().Str("mint", mint).Msg("snipe list entry removed")
	return nil
}

// handleBuyRequest fires a registry-backed buy. Runs detached so a slow
// confirmation never blocks the subscription callback.
func (b *Bus) handleBuyRequest(data []byte) error {
	mint := strings.TrimSpace(string(data))
	if mint == "" {
		return fmt.Errorf("empty mint")
	}

	b.log.Info().Str("mint", mint).Msg("buy requested over bus")
	go func() {
		if err := b.buyer.BuyKnown(context.Background(), mint); err != nil {
			b.log.Warn().Err(err).Str("mint", mint).Msg("requested buy failed")
		}
	}()
	return nil
}
