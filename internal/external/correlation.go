package external

import (
	"sync"

	"github.com/google/uuid"
)

// correlationTable assigns a unique id to every outbound request dispatched
// through Manager.CallTool on a connection and tracks which ids the caller
// has abandoned, so a completion that arrives after its caller stopped
// waiting can be recognised and discarded instead of acted on (spec.md §4.2
// "Correlation", "Cancellation"). Ids are uuids rather than a counter, the
// way the teacher mints execution ids for its workflow runs, so a log line
// naming one is unambiguous across every connection and process restart.
type correlationTable struct {
	mu        sync.Mutex
	cancelled map[string]bool
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{cancelled: make(map[string]bool)}
}

// allocate reserves a new id for an outbound request.
func (t *correlationTable) allocate() string {
	return uuid.New().String()
}

// cancel marks id as cancelled; any subsequent isCancelled(id) call (e.g. a
// completion arriving after the caller stopped waiting) reports true.
func (t *correlationTable) cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled[id] = true
}

func (t *correlationTable) isCancelled(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled[id]
}

// forget drops bookkeeping for id once its slot is fully resolved, so the
// cancelled set does not grow unbounded over a long-lived connection.
func (t *correlationTable) forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cancelled, id)
}
