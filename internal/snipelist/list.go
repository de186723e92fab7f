// Package snipelist maintains the operator-curated allowlist of mints the
// sniper may buy. The backing file is plain text, one mint per line, and
// edits made while the process runs are picked up automatically.
package snipelist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// List is the in-memory view of the allowlist file. Safe for concurrent use.
type List struct {
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]struct{}
}

// New loads the list from path. A missing file is an empty list, not an
// error; operators often create it later.
func New(path string, log zerolog.Logger) (*List, error) {
	l := &List{
		path:    path,
		log:     log.With().Str("component", "snipelist").Logger(),
		entries: make(map[string]struct{}),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload replaces the in-memory entries with the file's current contents.
func (l *List) Reload() error {
	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		l.mu.Lock()
		l.entries = make(map[string]struct{})
		l.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("open snipe list %s: %w", l.path, err)
	}
	defer file.Close()

	entries := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read snipe list: %w", err)
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	l.log.Debug().Int("entries", len(entries)).Msg("snipe list loaded")
	return nil
}

// Contains reports whether mint is allowlisted.
func (l *List) Contains(mint string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[mint]
	return ok
}

// Entries returns a snapshot of the current entries.
func (l *List) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.entries))
	for mint := range l.entries {
		out = append(out, mint)
	}
	return out
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Add appends mint to the list and its backing file.
func (l *List) Add(mint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[mint]; ok {
		return nil
	}
	l.entries[mint] = struct{}{}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open snipe list for append: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, mint); err != nil {
		return fmt.Errorf("append to snipe list: %w", err)
	}
	return nil
}

// Remove deletes mint from the list and rewrites the backing file without
// it. Called after a successful buy so the entry fires only once.
func (l *List) Remove(mint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[mint]; !ok {
		return nil
	}
	delete(l.entries, mint)

	var sb strings.Builder
	for entry := range l.entries {
		sb.WriteString(entry)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(l.path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("rewrite snipe list: %w", err)
	}
	return nil
}
