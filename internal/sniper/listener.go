// Package sniper contains the event-to-execution pipeline: log listening,
// pool key resolution, and candidate orchestration.
package sniper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"raysniper/internal/domain"
	"raysniper/internal/solana"
)

// RayFeeProgram receives pool-creation fees; its log stream is the earliest
// reliable signal that a new pool exists.
const RayFeeProgram = "7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5"

// SeenSet tracks processed transaction signatures for at-most-once
// candidate emission. Safe for concurrent use.
type SeenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSeenSet creates an empty signature set.
func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{})}
}

// Contains reports whether sig was already marked.
func (s *SeenSet) Contains(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[sig]
	return ok
}

// Mark records sig. Returns false if it was already present.
func (s *SeenSet) Mark(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[sig]; ok {
		return false
	}
	s.seen[sig] = struct{}{}
	return true
}

// Len returns the number of marked signatures.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// txFetcher is the RPC surface the listener needs.
type txFetcher interface {
	GetParsedTransaction(ctx context.Context, signature string) (*solana.ParsedTransaction, error)
}

// Listener turns raw log notifications into deduplicated CandidateEvents.
// Notifications for failed transactions and replayed signatures are dropped
// before any RPC call is made.
type Listener struct {
	events <-chan solana.LogNotification
	rpc    txFetcher
	seen   *SeenSet
	out    chan<- domain.CandidateEvent
	log    zerolog.Logger
}

// NewListener wires a notification stream to a candidate channel.
func NewListener(events <-chan solana.LogNotification, rpc txFetcher, seen *SeenSet, out chan<- domain.CandidateEvent, log zerolog.Logger) *Listener {
	return &Listener{
		events: events,
		rpc:    rpc,
		seen:   seen,
		out:    out,
		log:    log.With().Str("component", "listener").Logger(),
	}
}

// Run consumes notifications until ctx is cancelled or the stream closes.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-l.events:
			if !ok {
				l.log.Info().Msg("notification stream closed")
				return
			}
			l.handle(ctx, notif)
		}
	}
}

func (l *Listener) handle(ctx context.Context, notif solana.LogNotification) {
	if notif.Err != nil {
		return
	}
	if l.seen.Contains(notif.Signature) {
		return
	}

	tx, err := l.rpc.GetParsedTransaction(ctx, notif.Signature)
	if err != nil {
		// Leave the signature unmarked so a later notification can retry.
		l.log.Warn().Err(err).Str("signature", notif.Signature).Msg("fetch transaction failed")
		return
	}
	if tx == nil || tx.Failed() {
		return
	}

	if !l.seen.Mark(notif.Signature) {
		return
	}

	logs := notif.Logs
	if len(logs) == 0 {
		logs = tx.LogMessages
	}

	event := domain.CandidateEvent{
		Signature:  notif.Signature,
		Logs:       logs,
		Creator:    tx.FeePayer(),
		ObservedAt: time.Now(),
	}

	l.log.Info().Str("signature", notif.Signature).Str("creator", event.Creator).Msg("new pool candidate")

	select {
	case l.out <- event:
	case <-ctx.Done():
	}
}
