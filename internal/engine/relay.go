package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster fans a signed transaction out to every relay endpoint in
// parallel. One accepted submission is enough for the attempt to count.
type Broadcaster struct {
	endpoints []string
	client    *http.Client
	log       zerolog.Logger
}

// NewBroadcaster creates a broadcaster over the given submission URLs.
func NewBroadcaster(endpoints []string, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("component", "broadcast").Logger(),
	}
}

// Broadcast submits the base58-encoded transaction to every endpoint and
// returns the number of relays that accepted it.
func (b *Broadcaster) Broadcast(ctx context.Context, encodedTx string) int {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "sendTransaction",
		"params":  []interface{}{encodedTx},
	})
	if err != nil {
		b.log.Error().Err(err).Msg("marshal broadcast request")
		return 0
	}

	var wg sync.WaitGroup
	results := make(chan error, len(b.endpoints))

	for _, endpoint := range b.endpoints {
		wg.Add(1)
		go func(endpoint string) {
			defer wg.Done()
			results <- b.submit(ctx, endpoint, body)
		}(endpoint)
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
		} else {
			b.log.Debug().Err(err).Msg("relay rejected submission")
		}
	}

	b.log.Info().Int("accepted", accepted).Int("total", len(b.endpoints)).Msg("broadcast complete")
	return accepted
}

func (b *Broadcaster) submit(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("submit to %s: status %d", endpoint, resp.StatusCode)
	}
	return nil
}
