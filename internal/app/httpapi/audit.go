package httpapi

import (
	"net/http"
	"sync"
	"time"
)

// auditEntry records one mutating API call.
type auditEntry struct {
	Time   time.Time `json:"time"`
	Caller string    `json:"caller,omitempty"`
	Path   string    `json:"path"`
	Method string    `json:"method"`
	Error  string    `json:"error,omitempty"`
}

// auditLog keeps a bounded in-memory trail of mutating calls.
type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
	max     int
}

func newAuditLog(max int) *auditLog {
	if max <= 0 {
		max = 200
	}
	return &auditLog{max: max}
}

func (l *auditLog) add(r *http.Request, caller string, err error) {
	entry := auditEntry{
		Time:   time.Now().UTC(),
		Caller: caller,
		Path:   r.URL.Path,
		Method: r.Method,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

func (l *auditLog) list() []auditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]auditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
