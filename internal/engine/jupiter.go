package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"raysniper/internal/domain"
	"raysniper/internal/solana"
)

// DefaultJupiterBaseURL is the public aggregator API.
const DefaultJupiterBaseURL = "https://quote-api.jup.ag/v6"

// jupiterRPC is the RPC surface the fallback provider needs.
type jupiterRPC interface {
	SendTransaction(ctx context.Context, encodedTx string) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error)
}

// Jupiter buys through the aggregator when direct pool execution is
// exhausted. The aggregator serves the transaction pre-built; we only sign
// and submit it.
type Jupiter struct {
	baseURL string
	rpc     jupiterRPC
	client  *http.Client
	config  EngineConfig
	log     zerolog.Logger
}

// NewJupiter creates the fallback provider. Empty baseURL selects the
// public API.
func NewJupiter(baseURL string, rpc jupiterRPC, config EngineConfig, log zerolog.Logger) *Jupiter {
	if baseURL == "" {
		baseURL = DefaultJupiterBaseURL
	}
	return &Jupiter{
		baseURL: baseURL,
		rpc:     rpc,
		client:  &http.Client{Timeout: 15 * time.Second},
		config:  config,
		log:     log.With().Str("component", "jupiter").Logger(),
	}
}

// Buy swaps amountLamports of wrapped SOL into outputMint and returns the
// confirmed signature.
func (j *Jupiter) Buy(ctx context.Context, wallet *solana.Keypair, outputMint string, amountLamports uint64, slippageBps int) (string, error) {
	quote, err := j.quote(ctx, outputMint, amountLamports, slippageBps)
	if err != nil {
		return "", fmt.Errorf("jupiter quote: %w", err)
	}

	swapTx, err := j.swapTransaction(ctx, quote, wallet.PublicKey())
	if err != nil {
		return "", fmt.Errorf("jupiter swap: %w", err)
	}

	signed, sig, err := signServedTransaction(swapTx, wallet)
	if err != nil {
		return "", fmt.Errorf("sign jupiter transaction: %w", err)
	}

	if _, err := j.rpc.SendTransaction(ctx, base64.StdEncoding.EncodeToString(signed)); err != nil {
		return "", fmt.Errorf("send jupiter transaction: %w", err)
	}

	j.log.Info().Str("signature", sig).Str("mint", outputMint).Msg("jupiter buy submitted")

	if err := j.confirm(ctx, sig); err != nil {
		return sig, &domain.ConfirmError{Signature: sig, Err: err}
	}
	return sig, nil
}

// quote fetches a route and returns the raw response for the swap request.
func (j *Jupiter) quote(ctx context.Context, outputMint string, amountLamports uint64, slippageBps int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("inputMint", solana.WSOL)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amountLamports, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (j *Jupiter) swapTransaction(ctx context.Context, quote json.RawMessage, userPublicKey string) ([]byte, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"quoteResponse":    quote,
		"userPublicKey":    userPublicKey,
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if result.SwapTransaction == "" {
		return nil, fmt.Errorf("empty swapTransaction in response")
	}

	return base64.StdEncoding.DecodeString(result.SwapTransaction)
}

// signServedTransaction fills the fee-payer signature slot of a serialized
// transaction served by the aggregator and returns the signed bytes with
// the base58 signature.
func signServedTransaction(raw []byte, wallet *solana.Keypair) ([]byte, string, error) {
	numSigs, offset, err := readCompactU16(raw)
	if err != nil {
		return nil, "", err
	}
	if numSigs == 0 {
		return nil, "", fmt.Errorf("transaction requires no signatures")
	}

	msgStart := offset + int(numSigs)*64
	if len(raw) < msgStart {
		return nil, "", fmt.Errorf("truncated transaction: %d bytes", len(raw))
	}

	sig := wallet.Sign(raw[msgStart:])

	signed := make([]byte, len(raw))
	copy(signed, raw)
	copy(signed[offset:offset+64], sig)

	return signed, base58.Encode(sig), nil
}

// readCompactU16 decodes a short-vec length prefix.
func readCompactU16(data []byte) (uint16, int, error) {
	var value uint16
	var shift uint
	for i := 0; i < 3 && i < len(data); i++ {
		b := data[i]
		value |= uint16(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("malformed compact-u16")
}

func (j *Jupiter) confirm(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(j.config.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		statuses, err := j.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 {
			status := statuses[0]
			if status != nil && status.Err != nil {
				return fmt.Errorf("transaction failed on chain: %v", status.Err)
			}
			if status.Confirmed() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation timed out; transaction may still land: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
