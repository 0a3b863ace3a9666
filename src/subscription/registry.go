package subscription

import (
	"sort"
	"sync"

	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------
// Registry tracks the desired subscription set for the feed channel and the
// delta that still has to reach the wire. Mutations are cheap map updates and
// the wire payload is only produced on drain, so rapid subscribe/unsubscribe
// churn between flushes coalesces into a single frame. The desired set is the
// source of truth for replay after a reconnect.
// -----------------------------------------------------------------------------

type Registry struct {
	mu      sync.Mutex
	desired map[models.MEventType]map[string]models.MSubscriptionEntry
	flushed map[models.MEventType]map[string]models.MSubscriptionEntry
	changes chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		desired: make(map[models.MEventType]map[string]models.MSubscriptionEntry),
		flushed: make(map[models.MEventType]map[string]models.MSubscriptionEntry),
		changes: make(chan struct{}, 1),
	}
}

// -----------------------------------------------------------------------------

// Subscribe adds plain symbols for one event kind. Symbols already in the
// desired set are ignored.
func (r *Registry) Subscribe(kind models.MEventType, symbols []string) {
	entries := make([]models.MSubscriptionEntry, 0, len(symbols))
	for _, symbol := range symbols {
		entries = append(entries, models.MSubscriptionEntry{Type: kind, Symbol: symbol})
	}
	r.SubscribeEntries(entries)
}

// -----------------------------------------------------------------------------

// SubscribeEntries adds fully specified entries, including time series
// entries that carry a fromTime. Re-adding a symbol with a different
// fromTime replaces the stored entry and schedules it for resend.
func (r *Registry) SubscribeEntries(entries []models.MSubscriptionEntry) {
	if len(entries) == 0 {
		return
	}

	r.mu.Lock()
	changed := false
	for _, entry := range entries {
		symbols, ok := r.desired[entry.Type]
		if !ok {
			symbols = make(map[string]models.MSubscriptionEntry)
			r.desired[entry.Type] = symbols
		}
		if existing, ok := symbols[entry.Symbol]; ok && existing == entry {
			continue
		}
		symbols[entry.Symbol] = entry
		changed = true
	}
	r.mu.Unlock()

	if changed {
		r.signal()
	}
}

// -----------------------------------------------------------------------------

// Unsubscribe drops symbols from the desired set. Unknown symbols are a
// no-op.
func (r *Registry) Unsubscribe(kind models.MEventType, symbols []string) {
	r.mu.Lock()
	changed := false
	if existing, ok := r.desired[kind]; ok {
		for _, symbol := range symbols {
			if _, ok := existing[symbol]; ok {
				delete(existing, symbol)
				changed = true
			}
		}
		if len(existing) == 0 {
			delete(r.desired, kind)
		}
	}
	r.mu.Unlock()

	if changed {
		r.signal()
	}
}

// -----------------------------------------------------------------------------

// Contains reports whether the symbol is currently in the desired set.
func (r *Registry) Contains(kind models.MEventType, symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols, ok := r.desired[kind]
	if !ok {
		return false
	}
	_, ok = symbols[symbol]
	return ok
}

// -----------------------------------------------------------------------------

// DrainDelta returns the difference between the desired set and what was
// last flushed, then marks the desired set as flushed. An entry whose
// fromTime changed since the last flush is included in Add again. Entries
// are sorted so the produced frames are deterministic.
func (r *Registry) DrainDelta() models.MSubscriptionDelta {
	r.mu.Lock()
	defer r.mu.Unlock()

	var delta models.MSubscriptionDelta
	for kind, symbols := range r.desired {
		for symbol, entry := range symbols {
			if flushed, ok := r.flushed[kind][symbol]; !ok || flushed != entry {
				delta.Add = append(delta.Add, entry)
			}
		}
	}
	for kind, symbols := range r.flushed {
		for symbol := range symbols {
			if _, ok := r.desired[kind][symbol]; !ok {
				delta.Remove = append(delta.Remove, models.MSubscriptionEntry{Type: kind, Symbol: symbol})
			}
		}
	}

	sortEntries(delta.Add)
	sortEntries(delta.Remove)
	r.flushed = copySet(r.desired)
	return delta
}

// -----------------------------------------------------------------------------

// Snapshot returns the entire desired set as additions and marks it
// flushed. Used to replay every subscription on a fresh connection.
func (r *Registry) Snapshot() models.MSubscriptionDelta {
	r.mu.Lock()
	defer r.mu.Unlock()

	var delta models.MSubscriptionDelta
	for _, symbols := range r.desired {
		for _, entry := range symbols {
			delta.Add = append(delta.Add, entry)
		}
	}
	sortEntries(delta.Add)
	r.flushed = copySet(r.desired)
	return delta
}

// -----------------------------------------------------------------------------

// InvalidateFlushed forgets what was sent on the wire. Called when the
// connection drops so the next drain resends the full desired set.
func (r *Registry) InvalidateFlushed() {
	r.mu.Lock()
	r.flushed = make(map[models.MEventType]map[string]models.MSubscriptionEntry)
	r.mu.Unlock()
}

// -----------------------------------------------------------------------------

// HasPending reports whether a drain would produce a non-empty delta.
func (r *Registry) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for kind, symbols := range r.desired {
		for symbol, entry := range symbols {
			if flushed, ok := r.flushed[kind][symbol]; !ok || flushed != entry {
				return true
			}
		}
	}
	for kind, symbols := range r.flushed {
		for symbol := range symbols {
			if _, ok := r.desired[kind][symbol]; !ok {
				return true
			}
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// Changes yields a signal after every mutation of the desired set. The
// channel has capacity one, multiple mutations collapse into one signal.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

// -----------------------------------------------------------------------------

// Counts returns the number of distinct kinds and total subscribed symbols.
func (r *Registry) Counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbolCount := 0
	for _, symbols := range r.desired {
		symbolCount += len(symbols)
	}
	return len(r.desired), symbolCount
}

// -----------------------------------------------------------------------------

// KindSymbols returns the desired set as sorted symbol lists per kind.
func (r *Registry) KindSymbols() map[models.MEventType][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[models.MEventType][]string, len(r.desired))
	for kind, symbols := range r.desired {
		list := make([]string, 0, len(symbols))
		for symbol := range symbols {
			list = append(list, symbol)
		}
		sort.Strings(list)
		out[kind] = list
	}
	return out
}

// -----------------------------------------------------------------------------

func (r *Registry) signal() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

func sortEntries(entries []models.MSubscriptionEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].Symbol < entries[j].Symbol
	})
}

func copySet(src map[models.MEventType]map[string]models.MSubscriptionEntry) map[models.MEventType]map[string]models.MSubscriptionEntry {
	dst := make(map[models.MEventType]map[string]models.MSubscriptionEntry, len(src))
	for kind, symbols := range src {
		inner := make(map[string]models.MSubscriptionEntry, len(symbols))
		for symbol, entry := range symbols {
			inner[symbol] = entry
		}
		dst[kind] = inner
	}
	return dst
}
