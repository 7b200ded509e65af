package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRegistry_Reserve(t *testing.T) {
	r := New(false, 0)
	r.OpenBatch("b1", true)

	tests := []struct {
		candidate string
		url       string
		domain    string
		expected  bool
		desc      string
	}{
		{"c1", "https://salesforce.com/pricing", "salesforce.com", true, "first reservation"},
		{"c1", "https://salesforce.com/pricing", "salesforce.com", true, "same candidate again"},
		{"c2", "https://salesforce.com/pricing", "salesforce.com", false, "other candidate"},
		{"c1", "https://salesforce.com/editions", "salesforce.com", true, "second URL on domain"},
		{"c1", "https://salesforce.com/docs", "salesforce.com", false, "domain limit reached"},
		{"c2", "https://salesforce.com/docs", "salesforce.com", true, "domain limit is per candidate"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := r.Reserve("b1", tt.candidate, tt.url, tt.domain, 2); got != tt.expected {
				t.Errorf("Reserve(%s, %s) = %v, expected %v", tt.candidate, tt.url, got, tt.expected)
			}
		})
	}

	if r.Len() != 3 {
		t.Errorf("Expected 3 reserved URLs, got %d", r.Len())
	}
	if diff := cmp.Diff(map[string]int{"salesforce.com": 2}, r.DomainCounts("b1", "c1")); diff != "" {
		t.Errorf("DomainCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_UniquenessDisabled(t *testing.T) {
	r := New(false, 0)
	r.OpenBatch("b1", false)

	if !r.Reserve("b1", "c1", "https://g2.com/crm", "g2.com", 1) {
		t.Fatal("Expected first reservation to succeed")
	}
	if !r.Reserve("b1", "c2", "https://g2.com/crm", "g2.com", 1) {
		t.Error("Expected shared URL when uniqueness is disabled")
	}
	if r.Reserve("b1", "c1", "https://g2.com/other", "g2.com", 1) {
		t.Error("Expected domain limit to hold without uniqueness")
	}
}

func TestRegistry_ConcurrentReserve(t *testing.T) {
	r := New(false, 0)
	r.OpenBatch("b1", true)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.Reserve("b1", fmt.Sprintf("c%d", i), "https://hubspot.com/pricing", "hubspot.com", 2) {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one winner, got %d", wins)
	}
}

func TestRegistry_ReleaseCandidate(t *testing.T) {
	r := New(false, 0)
	r.OpenBatch("b1", true)
	r.Reserve("b1", "c1", "https://a.com/x", "a.com", 2)
	r.Reserve("b1", "c2", "https://b.com/x", "b.com", 2)

	r.ReleaseCandidate("b1", "c1")

	if _, ok := r.Owner("https://a.com/x"); ok {
		t.Error("Expected released URL to be free")
	}
	if !r.Reserve("b1", "c2", "https://a.com/x", "a.com", 2) {
		t.Error("Expected released URL to be reservable by another candidate")
	}
	if len(r.DomainCounts("b1", "c1")) != 0 {
		t.Error("Expected released candidate to hold nothing")
	}
}

func TestRegistry_ReleaseBatch(t *testing.T) {
	r := New(false, 0)
	r.OpenBatch("b1", true)
	r.OpenBatch("b2", true)
	r.Reserve("b1", "c1", "https://a.com/x", "a.com", 2)
	r.Reserve("b2", "c1", "https://b.com/x", "b.com", 2)

	r.ReleaseBatch("b1")

	if r.Len() != 1 {
		t.Errorf("Expected 1 reservation after release, got %d", r.Len())
	}
	if owner, ok := r.Owner("https://b.com/x"); !ok || owner.BatchID != "b2" {
		t.Errorf("Expected b2 reservation to survive, got %+v", owner)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Expected empty registry after reset, got %d", r.Len())
	}
}

func TestRegistry_GlobalRetention(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := New(true, time.Hour)
	r.now = func() time.Time { return now }

	r.OpenBatch("b1", true)
	r.Reserve("b1", "c1", "https://a.com/x", "a.com", 2)
	r.ReleaseBatch("b1")

	r.OpenBatch("b2", true)
	if r.Reserve("b2", "c9", "https://a.com/x", "a.com", 2) {
		t.Error("Expected URL to stay reserved across batches")
	}

	now = now.Add(2 * time.Hour)
	if !r.Reserve("b2", "c9", "https://a.com/x", "a.com", 2) {
		t.Error("Expected URL to be free after the retention window")
	}
}
