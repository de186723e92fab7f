package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient is a Solana JSON-RPC 2.0 client over HTTP.
type HTTPClient struct {
	endpoint    string
	endpointMu  sync.RWMutex
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.maxRetries = n }
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.retryDelay = d }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) { c.client = client }
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEndpoint swaps the RPC endpoint for subsequent calls. Used by the
// runtime config bus; in-flight calls keep the endpoint they started with.
func (c *HTTPClient) SetEndpoint(endpoint string) {
	c.endpointMu.Lock()
	c.endpoint = endpoint
	c.endpointMu.Unlock()
}

// Endpoint returns the current RPC endpoint.
func (c *HTTPClient) Endpoint() string {
	c.endpointMu.RLock()
	defer c.endpointMu.RUnlock()
	return c.endpoint
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// RPC-level errors are returned immediately; transport errors retry.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetParsedTransaction fetches a transaction with jsonParsed encoding at
// confirmed commitment. Returns nil if the transaction is not found.
func (c *HTTPClient) GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *parsedTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	tx := &ParsedTransaction{
		Signature: signature,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	if result.Meta != nil {
		tx.Err = result.Meta.Err
		tx.LogMessages = result.Meta.LogMessages
	}
	if result.Transaction != nil && result.Transaction.Message != nil {
		for _, k := range result.Transaction.Message.AccountKeys {
			tx.AccountKeys = append(tx.AccountKeys, k.Pubkey)
		}
	}
	return tx, nil
}

type parsedTransactionResult struct {
	Slot        int64                `json:"slot"`
	BlockTime   *int64               `json:"blockTime"`
	Meta        *parsedTxMeta        `json:"meta"`
	Transaction *parsedTxTransaction `json:"transaction"`
}

type parsedTxMeta struct {
	Err         interface{} `json:"err"`
	LogMessages []string    `json:"logMessages"`
}

type parsedTxTransaction struct {
	Message *parsedTxMessage `json:"message"`
}

type parsedTxMessage struct {
	AccountKeys []parsedAccountKey `json:"accountKeys"`
}

type parsedAccountKey struct {
	Pubkey string `json:"pubkey"`
	Signer bool   `json:"signer"`
}

// GetAccountInfo fetches an account with base64 encoding. Returns nil if
// the account does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": "confirmed",
		},
	}

	var result struct {
		Value *struct {
			Lamports uint64   `json:"lamports"`
			Owner    string   `json:"owner"`
			Data     []string `json:"data"` // [base64, encoding]
		} `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports: result.Value.Lamports,
		Owner:    result.Value.Owner,
	}
	if len(result.Value.Data) >= 1 {
		data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account data: %w", err)
		}
		info.Data = data
	}
	return info, nil
}

// GetTokenSupply fetches the total supply of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	params := []interface{}{mint, map[string]string{"commitment": "confirmed"}}

	var result struct {
		Value *TokenAmount `json:"value"`
	}
	if err := c.call(ctx, "getTokenSupply", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("getTokenSupply %s: empty result", mint)
	}
	return result.Value, nil
}

// GetTokenLargestAccounts fetches the 20 largest token accounts of a mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	params := []interface{}{mint, map[string]string{"commitment": "confirmed"}}

	var result struct {
		Value []TokenAccountBalance `json:"value"`
	}
	if err := c.call(ctx, "getTokenLargestAccounts", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// GetMultipleParsedAccounts fetches several accounts with jsonParsed
// encoding. The result has one entry per requested pubkey; entries for
// missing accounts are nil.
func (c *HTTPClient) GetMultipleParsedAccounts(ctx context.Context, pubkeys []string) ([]*ParsedTokenAccount, error) {
	params := []interface{}{
		pubkeys,
		map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
	}

	var result struct {
		Value []*struct {
			Data *struct {
				Parsed *struct {
					Info *ParsedTokenAccount `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]*ParsedTokenAccount, len(result.Value))
	for i, v := range result.Value {
		if v == nil || v.Data == nil || v.Data.Parsed == nil {
			continue
		}
		accounts[i] = v.Data.Parsed.Info
	}
	return accounts, nil
}

// GetParsedTokenAccountsByOwner fetches the owner's token accounts for one
// mint. Returns an empty slice when the owner holds no account.
func (c *HTTPClient) GetParsedTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]*ParsedTokenAccount, error) {
	params := []interface{}{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
	}

	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info *ParsedTokenAccount `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	var accounts []*ParsedTokenAccount
	for _, v := range result.Value {
		if v.Account.Data.Parsed.Info != nil {
			accounts = append(accounts, v.Account.Data.Parsed.Info)
		}
	}
	return accounts, nil
}

// GetLatestBlockhash fetches the latest blockhash at confirmed commitment.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	params := []interface{}{map[string]string{"commitment": "confirmed"}}

	var result struct {
		Value *LatestBlockhash `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("getLatestBlockhash: empty result")
	}
	return result.Value, nil
}

// GetBlockHeight fetches the current block height at confirmed commitment.
func (c *HTTPClient) GetBlockHeight(ctx context.Context) (uint64, error) {
	params := []interface{}{map[string]string{"commitment": "confirmed"}}

	var height uint64
	if err := c.call(ctx, "getBlockHeight", params, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// SendTransaction submits a base64-encoded signed transaction with
// preflight checks skipped. Returns the transaction signature.
func (c *HTTPClient) SendTransaction(ctx context.Context, encodedTx string) (string, error) {
	params := []interface{}{
		encodedTx,
		map[string]interface{}{
			"encoding":            "base64",
			"skipPreflight":       true,
			"preflightCommitment": "confirmed",
			"maxRetries":          2,
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetSignatureStatuses fetches confirmation statuses for signatures. The
// result has one entry per signature; unknown signatures map to nil.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	params := []interface{}{signatures}

	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// GetBalance fetches the lamport balance of an account.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	params := []interface{}{pubkey, map[string]string{"commitment": "confirmed"}}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}
