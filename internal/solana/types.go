package solana

// ParsedTransaction is the subset of a jsonParsed transaction the pipeline
// needs: failure state, log output, and the static account key list in
// wire order (fee payer first).
type ParsedTransaction struct {
	Signature   string
	Slot        int64
	BlockTime   int64
	Err         interface{} // non-nil when the transaction failed
	LogMessages []string
	AccountKeys []string
}

// Failed reports whether the transaction errored on chain.
func (t *ParsedTransaction) Failed() bool { return t.Err != nil }

// FeePayer returns the transaction's first account key, or "" when the key
// list is empty.
func (t *ParsedTransaction) FeePayer() string {
	if len(t.AccountKeys) == 0 {
		return ""
	}
	return t.AccountKeys[0]
}

// AccountInfo is a raw on-chain account with its data already base64-decoded.
type AccountInfo struct {
	Lamports uint64
	Owner    string
	Data     []byte
}

// TokenAmount is a raw token quantity with its decimal scale.
type TokenAmount struct {
	Amount   string  `json:"amount"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}

// TokenAccountBalance is one entry from getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address  string  `json:"address"`
	Amount   string  `json:"amount"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}

// ParsedTokenAccount is the jsonParsed info block of an SPL token account.
type ParsedTokenAccount struct {
	Mint        string `json:"mint"`
	Owner       string `json:"owner"`
	TokenAmount struct {
		Amount   string  `json:"amount"`
		Decimals int     `json:"decimals"`
		UIAmount float64 `json:"uiAmount"`
	} `json:"tokenAmount"`
}

// LatestBlockhash pairs a recent blockhash with its expiry height.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SignatureStatus is one entry from getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// Confirmed reports whether the signature reached at least confirmed
// commitment without an error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}
