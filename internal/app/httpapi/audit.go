package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/voltpacks/packmint/pkg/logger"
)

// auditEntry records one handled request.
type auditEntry struct {
	Time       time.Time `json:"time"`
	Identity   string    `json:"identity,omitempty"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

type auditSink interface {
	Write(entry auditEntry) error
}

// logSink mirrors audit entries to the application log at debug level.
type logSink struct {
	log *logger.Logger
}

func newLogSink(log *logger.Logger) *logSink {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &logSink{log: log}
}

func (s *logSink) Write(entry auditEntry) error {
	l := s.log.
		WithField("method", entry.Method).
		WithField("path", entry.Path).
		WithField("status", entry.Status)
	if entry.Identity != "" {
		l = l.WithField("identity", entry.Identity)
	}
	l.Debug("request handled")
	return nil
}

// auditLog keeps a bounded in-memory trail of recent requests,
// optionally mirrored to a sink.
type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
	max     int
	sink    auditSink
}

func newAuditLog(max int, sink auditSink) *auditLog {
	if max <= 0 {
		max = 200
	}
	return &auditLog{max: max, sink: sink}
}

func (l *auditLog) add(entry auditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best effort; a sink failure must not affect the request.
		_ = l.sink.Write(entry)
	}
}

func (l *auditLog) recent() []auditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]auditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// statusRecorder captures the response status for the audit trail.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
