package domain

// PoolKeySet is the full resolved account set for a Raydium AMM v4 pool,
// normalized so that QuoteMint is always wrapped SOL. Immutable once
// resolved.
type PoolKeySet struct {
	ID            string `json:"id"`
	BaseMint      string `json:"base_mint"`
	QuoteMint     string `json:"quote_mint"`
	LPMint        string `json:"lp_mint"`
	BaseDecimals  int    `json:"base_decimals"`
	QuoteDecimals int    `json:"quote_decimals"`
	Version       int    `json:"version"`

	ProgramID     string `json:"program_id"`
	Authority     string `json:"authority"`
	OpenOrders    string `json:"open_orders"`
	TargetOrders  string `json:"target_orders"`
	BaseVault     string `json:"base_vault"`
	QuoteVault    string `json:"quote_vault"`
	WithdrawQueue string `json:"withdraw_queue"`
	LPVault       string `json:"lp_vault"`

	MarketVersion    int    `json:"market_version"`
	MarketProgramID  string `json:"market_program_id"`
	MarketID         string `json:"market_id"`
	MarketAuthority  string `json:"market_authority"`
	MarketBaseVault  string `json:"market_base_vault"`
	MarketQuoteVault string `json:"market_quote_vault"`
	MarketBids       string `json:"market_bids"`
	MarketAsks       string `json:"market_asks"`
	MarketEventQueue string `json:"market_event_queue"`
}
