package reconcile

import (
	"sync"
	"time"
)

const (
	// DefaultHistoryCapacity bounds the in-memory audit log.
	DefaultHistoryCapacity = 1000
	// DefaultQueryLimit is used when Query is called with a non-positive limit.
	DefaultQueryLimit = 50
)

// HistoryRecord is one audit entry for a resolved conflict.
type HistoryRecord struct {
	ID             string       `json:"id"`
	EntityID       string       `json:"entity_id,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Field          string       `json:"field"`
	LocalValue     any          `json:"local_value"`
	RemoteValue    any          `json:"remote_value"`
	Strategy       StrategyKind `json:"strategy"`
	ResolvedValue  any          `json:"resolved_value"`
	ResolvedSource Source       `json:"resolved_source"`
	Reason         string       `json:"reason,omitempty"`
}

// HistoryRecorder is a fixed-capacity ring of HistoryRecords. When full, each
// append overwrites the oldest record. Safe for concurrent use.
type HistoryRecorder struct {
	mu    sync.RWMutex
	buf   []HistoryRecord
	start int // index of the oldest record
	size  int
}

// NewHistoryRecorder returns a recorder holding at most capacity records.
// A non-positive capacity selects DefaultHistoryCapacity.
func NewHistoryRecorder(capacity int) *HistoryRecorder {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryRecorder{buf: make([]HistoryRecord, capacity)}
}

// Append adds rec, evicting the oldest record if the ring is full.
func (h *HistoryRecorder) Append(rec HistoryRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = rec
		h.size++
		return
	}
	h.buf[h.start] = rec
	h.start = (h.start + 1) % len(h.buf)
}

// Query returns up to limit records, newest first. An empty field matches all
// records. A non-positive limit selects DefaultQueryLimit.
func (h *HistoryRecorder) Query(field string, limit int) []HistoryRecord {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryRecord, 0, min(limit, h.size))
	for i := h.size - 1; i >= 0 && len(out) < limit; i-- {
		rec := h.buf[(h.start+i)%len(h.buf)]
		if field != "" && rec.Field != field {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Len returns the number of records held.
func (h *HistoryRecorder) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap returns the maximum number of records held.
func (h *HistoryRecorder) Cap() int {
	return len(h.buf)
}

// Reset drops every record.
func (h *HistoryRecorder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.buf)
	h.start, h.size = 0, 0
}
