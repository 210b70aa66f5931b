package agent

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tidwall/pretty"
)

// DebugEntry is one append-only diagnostic record. Request and Response are
// optional JSON bodies attached for inspection.
type DebugEntry struct {
	Time     time.Time
	Summary  string
	Request  []byte
	Response []byte
}

// DebugSink receives diagnostic entries. Implementations must be safe for
// concurrent use and must never block the caller for long; entries are purely
// observational.
type DebugSink interface {
	Append(entry DebugEntry)
}

// NopDebugSink discards all entries.
type NopDebugSink struct{}

func (NopDebugSink) Append(DebugEntry) {}

// WriterDebugSink writes entries to an io.Writer, pretty-printing any
// attached JSON bodies.
type WriterDebugSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterDebugSink creates a sink writing to w.
func NewWriterDebugSink(w io.Writer) *WriterDebugSink {
	return &WriterDebugSink{w: w}
}

// Append writes one entry. Write errors are ignored; the sink is best-effort.
func (s *WriterDebugSink) Append(entry DebugEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.w, "[%s] %s\n", entry.Time.Format("15:04:05.000"), entry.Summary)
	if len(entry.Request) > 0 {
		s.w.Write(pretty.Pretty(entry.Request))
	}
	if len(entry.Response) > 0 {
		s.w.Write(pretty.Pretty(entry.Response))
	}
}
