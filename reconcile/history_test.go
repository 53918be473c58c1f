package reconcile

import (
	"fmt"
	"sync"
	"testing"
)

func rec(field string, n int) HistoryRecord {
	return HistoryRecord{ID: fmt.Sprintf("%s-%d", field, n), Field: field, ResolvedValue: n}
}

func TestHistoryRecorderQueryOrder(t *testing.T) {
	h := NewHistoryRecorder(10)
	for i := 0; i < 5; i++ {
		h.Append(rec("price", i))
	}

	got := h.Query("", 3)
	if len(got) != 3 {
		t.Fatalf("Query returned %d records", len(got))
	}
	for i, want := range []string{"price-4", "price-3", "price-2"} {
		if got[i].ID != want {
			t.Fatalf("Query()[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestHistoryRecorderFieldFilter(t *testing.T) {
	h := NewHistoryRecorder(10)
	h.Append(rec("price", 1))
	h.Append(rec("title", 1))
	h.Append(rec("price", 2))
	h.Append(rec("sku", 1))

	got := h.Query("price", 10)
	if len(got) != 2 || got[0].ID != "price-2" || got[1].ID != "price-1" {
		t.Fatalf("Query(price) = %v", got)
	}
	if got := h.Query("images", 10); len(got) != 0 {
		t.Fatalf("Query(images) = %v", got)
	}
}

func TestHistoryRecorderDefaultLimit(t *testing.T) {
	h := NewHistoryRecorder(0)
	if h.Cap() != DefaultHistoryCapacity {
		t.Fatalf("Cap() = %d", h.Cap())
	}
	for i := 0; i < DefaultQueryLimit+10; i++ {
		h.Append(rec("price", i))
	}
	if got := h.Query("", 0); len(got) != DefaultQueryLimit {
		t.Fatalf("Query(limit=0) returned %d, want %d", len(got), DefaultQueryLimit)
	}
}

func TestHistoryRecorderEvictsOldest(t *testing.T) {
	h := NewHistoryRecorder(DefaultHistoryCapacity)
	total := DefaultHistoryCapacity + 250
	for i := 0; i < total; i++ {
		h.Append(rec("price", i))
		if h.Len() > DefaultHistoryCapacity {
			t.Fatalf("Len() = %d after %d appends", h.Len(), i+1)
		}
	}
	if h.Len() != DefaultHistoryCapacity {
		t.Fatalf("Len() = %d", h.Len())
	}

	all := h.Query("", DefaultHistoryCapacity+1)
	if len(all) != DefaultHistoryCapacity {
		t.Fatalf("Query returned %d", len(all))
	}
	if all[0].ResolvedValue != total-1 {
		t.Fatalf("newest = %v, want %d", all[0].ResolvedValue, total-1)
	}
	if oldest := all[len(all)-1]; oldest.ResolvedValue != total-DefaultHistoryCapacity {
		t.Fatalf("oldest = %v, want %d", oldest.ResolvedValue, total-DefaultHistoryCapacity)
	}
}

func TestHistoryRecorderConcurrentAppend(t *testing.T) {
	const (
		capacity = 100
		writers  = 16
		perW     = 500
	)
	h := NewHistoryRecorder(capacity)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perW; i++ {
				h.Append(rec(fmt.Sprintf("f%d", w), i))
				if i%50 == 0 {
					_ = h.Query("", 10)
				}
			}
		}(w)
	}
	wg.Wait()

	if h.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", h.Len(), capacity)
	}
	seen := make(map[string]bool)
	for _, r := range h.Query("", capacity) {
		if r.ID == "" {
			t.Fatal("found an empty slot in a full ring")
		}
		if seen[r.ID] {
			t.Fatalf("duplicate record %s", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestHistoryRecorderReset(t *testing.T) {
	h := NewHistoryRecorder(3)
	h.Append(rec("price", 1))
	h.Reset()
	if h.Len() != 0 || len(h.Query("", 10)) != 0 {
		t.Fatal("Reset did not clear the recorder")
	}
	h.Append(rec("price", 2))
	if got := h.Query("", 10); len(got) != 1 || got[0].ID != "price-2" {
		t.Fatalf("after reset Query = %v", got)
	}
}
