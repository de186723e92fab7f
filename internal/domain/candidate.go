package domain

import "time"

// CandidateEvent is a single pool-creation observation from the log stream.
// Created once per matching notification, consumed once, never mutated.
type CandidateEvent struct {
	Signature  string
	Logs       []string
	Creator    string // fee payer of the pool-creation transaction
	ObservedAt time.Time
}
