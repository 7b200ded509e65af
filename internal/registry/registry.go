package registry

import (
	"sync"
	"time"
)

// Entry records which candidate holds a URL
type Entry struct {
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	CandidateID string    `json:"candidate_id"`
	BatchID     string    `json:"batch_id"`
	ReservedAt  time.Time `json:"reserved_at"`
}

type holderKey struct {
	batchID     string
	candidateID string
}

// Registry assigns each evidence URL to at most one candidate. In global
// scope reservations outlive their batch for the retention window.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]Entry               // url -> owner
	holdings  map[holderKey]map[string]Entry // candidate -> url -> entry
	unique    map[string]bool                // batchID -> ensure_uniqueness
	global    bool
	retention time.Duration
	now       func() time.Time
}

// New creates a registry. Batch scope is used when global is false.
func New(global bool, retention time.Duration) *Registry {
	return &Registry{
		entries:   make(map[string]Entry),
		holdings:  make(map[holderKey]map[string]Entry),
		unique:    make(map[string]bool),
		global:    global,
		retention: retention,
		now:       time.Now,
	}
}

// OpenBatch registers a batch and whether it enforces uniqueness
func (r *Registry) OpenBatch(batchID string, ensureUnique bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unique[batchID] = ensureUnique
}

// Reserve atomically claims url for a candidate. It fails when another
// candidate holds the URL or the candidate already holds domainLimit URLs on
// domain. Reserving a URL the candidate already holds succeeds. A
// domainLimit of zero or less disables the domain bound.
func (r *Registry) Reserve(batchID, candidateID, url, domain string, domainLimit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := holderKey{batchID, candidateID}
	held := r.holdings[key]
	if _, ok := held[url]; ok {
		return true
	}

	ensureUnique, ok := r.unique[batchID]
	if !ok {
		ensureUnique = true
	}

	if ensureUnique || r.global {
		if owner, taken := r.entries[url]; taken && !r.expired(owner) {
			if owner.BatchID != batchID || owner.CandidateID != candidateID {
				return false
			}
		}
	}

	if domainLimit > 0 {
		count := 0
		for _, e := range held {
			if e.Domain == domain {
				count++
			}
		}
		if count >= domainLimit {
			return false
		}
	}

	entry := Entry{
		URL:         url,
		Domain:      domain,
		CandidateID: candidateID,
		BatchID:     batchID,
		ReservedAt:  r.now(),
	}
	if held == nil {
		held = make(map[string]Entry)
		r.holdings[key] = held
	}
	held[url] = entry
	if ensureUnique || r.global {
		r.entries[url] = entry
	}
	return true
}

// DomainCounts returns how many URLs per domain the candidate holds
func (r *Registry) DomainCounts(batchID, candidateID string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range r.holdings[holderKey{batchID, candidateID}] {
		counts[e.Domain]++
	}
	return counts
}

// ReleaseCandidate drops every reservation held by one candidate
func (r *Registry) ReleaseCandidate(batchID, candidateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := holderKey{batchID, candidateID}
	for url := range r.holdings[key] {
		if owner, ok := r.entries[url]; ok && owner.BatchID == batchID && owner.CandidateID == candidateID {
			delete(r.entries, url)
		}
	}
	delete(r.holdings, key)
}

// ReleaseBatch ends a batch. In batch scope its reservations are dropped; in
// global scope they stay until the retention window passes.
func (r *Registry) ReleaseBatch(batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.holdings {
		if key.batchID == batchID {
			delete(r.holdings, key)
		}
	}
	delete(r.unique, batchID)

	for url, e := range r.entries {
		if (!r.global && e.BatchID == batchID) || r.expired(e) {
			delete(r.entries, url)
		}
	}
}

// Reset drops every reservation
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]Entry)
	r.holdings = make(map[holderKey]map[string]Entry)
	r.unique = make(map[string]bool)
}

// Len returns the number of reserved URLs
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Owner returns the entry holding url, if any
func (r *Registry) Owner(url string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[url]
	if !ok || r.expired(e) {
		return Entry{}, false
	}
	return e, true
}

func (r *Registry) expired(e Entry) bool {
	return r.global && r.retention > 0 && r.now().Sub(e.ReservedAt) > r.retention
}
