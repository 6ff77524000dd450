// Package audit records API operations asynchronously. Recording never
// blocks or fails a request; entries are dropped under pressure.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vibedb/internal/domain"
	"vibedb/internal/storage/postgres"
)

const (
	defaultBufferSize = 1024
	writeTimeout      = 5 * time.Second
)

// Recorder buffers audit entries and writes them from a single goroutine.
type Recorder struct {
	store *postgres.Store
	log   *slog.Logger

	entries chan *domain.AuditEntry
	done    chan struct{}
	once    sync.Once

	dropped prometheus.Counter
	written prometheus.Counter
}

// NewRecorder creates a recorder and starts its writer goroutine.
func NewRecorder(store *postgres.Store, log *slog.Logger, reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		store:   store,
		log:     log,
		entries: make(chan *domain.AuditEntry, defaultBufferSize),
		done:    make(chan struct{}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibedb",
			Subsystem: "audit",
			Name:      "entries_dropped_total",
			Help:      "Audit entries dropped because the buffer was full.",
		}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibedb",
			Subsystem: "audit",
			Name:      "entries_written_total",
			Help:      "Audit entries persisted to the catalog.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.dropped, r.written)
	}

	go r.run()
	return r
}

// Record enqueues an entry. If the buffer is full the entry is dropped and
// counted; the caller is never blocked.
func (r *Recorder) Record(entry *domain.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	select {
	case r.entries <- entry:
	default:
		r.dropped.Inc()
		r.log.Warn("audit buffer full, dropping entry",
			"endpoint", entry.Endpoint, "user_id", entry.UserID)
	}
}

func (r *Recorder) run() {
	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.Audit().Insert(ctx, entry); err != nil {
			r.log.Error("failed to write audit entry",
				"endpoint", entry.Endpoint, "error", err)
		} else {
			r.written.Inc()
		}
		cancel()
	}
	close(r.done)
}

// Close drains the buffer and stops the writer. Entries enqueued after
// Close may be lost.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.entries)
	})
	select {
	case <-r.done:
	case <-time.After(10 * time.Second):
		r.log.Warn("audit recorder close timed out")
	}
}
