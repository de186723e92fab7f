package domain

// Outcome status values.
const (
	OutcomeSettled   = "settled"
	OutcomeFailed    = "failed"
	OutcomeAmbiguous = "ambiguous" // sent but confirmation errored; may still land
	OutcomeSkipped   = "skipped"
)

// OutcomeRecord is an append-only audit entry written after each candidate
// leaves the pipeline. Write-once; post-hoc analysis only.
type OutcomeRecord struct {
	ID             string  `json:"id"`
	BaseMint       string  `json:"base_mint"`
	Pool           string  `json:"pool"`
	Verdict        string  `json:"verdict"`
	Reason         string  `json:"reason,omitempty"`
	Status         string  `json:"status"`
	Signature      string  `json:"signature,omitempty"`
	Provider       string  `json:"provider,omitempty"` // raydium or jupiter
	TimestampMs    int64   `json:"timestamp_ms"`
	LatencySeconds float64 `json:"latency_seconds"`
}
