package manager

import (
	"sync"

	"github.com/aether-ai/mcpregd/internal/domain"
)

// DefaultHistoryCapacity bounds the execution history ring.
const DefaultHistoryCapacity = 100

// History is a bounded ring of tool executions, newest last. When full, the
// oldest entry is evicted. Safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.ToolExecution
	start    int
	count    int
}

// NewHistory creates a ring with the given capacity. Non-positive capacities
// fall back to the default.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		entries:  make([]domain.ToolExecution, capacity),
	}
}

// Append records one execution, evicting the oldest when full.
func (h *History) Append(e domain.ToolExecution) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count < h.capacity {
		h.entries[(h.start+h.count)%h.capacity] = e
		h.count++
		return
	}
	h.entries[h.start] = e
	h.start = (h.start + 1) % h.capacity
}

// List returns executions newest-first, optionally filtered by server id and
// truncated to limit. A non-positive limit returns everything retained.
func (h *History) List(serverID string, limit int) []domain.ToolExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.ToolExecution, 0, h.count)
	for i := h.count - 1; i >= 0; i-- {
		e := h.entries[(h.start+i)%h.capacity]
		if serverID != "" && e.ServerID != serverID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len reports how many executions are currently retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
