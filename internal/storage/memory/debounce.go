package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

// Debouncer tracks the last sighting of each key+fingerprint pair.
type Debouncer struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

var _ storage.Debouncer = (*Debouncer)(nil)

// NewDebouncer returns an in-memory debounce backend.
func NewDebouncer() *Debouncer {
	return &Debouncer{seen: make(map[string]time.Time)}
}

// Seen reports whether the fingerprint was sighted within the window and
// records it when it was not. A record at age exactly window still counts
// as a duplicate; duplicate sightings do not refresh the window.
func (d *Debouncer) Seen(_ context.Context, key string, window time.Duration, fingerprint string) (bool, error) {
	now := time.Now()
	entry := key + ":" + fingerprint

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[entry]; ok && now.Sub(last) <= window {
		return true, nil
	}

	d.seen[entry] = now
	return false, nil
}

// Clear drops every recorded fingerprint for the key.
func (d *Debouncer) Clear(_ context.Context, key string) error {
	prefix := key + ":"

	d.mu.Lock()
	defer d.mu.Unlock()

	for entry := range d.seen {
		if strings.HasPrefix(entry, prefix) {
			delete(d.seen, entry)
		}
	}

	return nil
}

// Cleanup removes records older than maxAge.
func (d *Debouncer) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	d.mu.Lock()
	defer d.mu.Unlock()

	for entry, last := range d.seen {
		if last.Before(cutoff) {
			delete(d.seen, entry)
		}
	}
}
