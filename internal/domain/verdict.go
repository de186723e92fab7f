package domain

// Verdict classifies a candidate token after the safety checks ran.
type Verdict int

const (
	// VerdictSafe means every check passed.
	VerdictSafe Verdict = iota
	// VerdictDangerous means a check tripped; Reason names it.
	VerdictDangerous
	// VerdictIndeterminate means a check could not complete. Callers must
	// treat this as "do not buy", never as safe.
	VerdictIndeterminate
)

func (v Verdict) String() string {
	switch v {
	case VerdictSafe:
		return "safe"
	case VerdictDangerous:
		return "dangerous"
	case VerdictIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// SafetyResult is the outcome of one evaluator run. Computed fresh per
// candidate; never cached.
type SafetyResult struct {
	Verdict Verdict
	Reason  string // set when Dangerous
	Err     error  // set when Indeterminate
}

// Safe reports whether the candidate passed all checks.
func (r SafetyResult) Safe() bool { return r.Verdict == VerdictSafe }

// SafeResult returns a passing result.
func SafeResult() SafetyResult { return SafetyResult{Verdict: VerdictSafe} }

// DangerousResult returns a failing result with the tripped check's name.
func DangerousResult(reason string) SafetyResult {
	return SafetyResult{Verdict: VerdictDangerous, Reason: reason}
}

// IndeterminateResult returns an inconclusive result carrying the cause.
func IndeterminateResult(err error) SafetyResult {
	return SafetyResult{Verdict: VerdictIndeterminate, Err: err}
}
