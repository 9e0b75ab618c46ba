package scan

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/risk"
)

// outcomeEntry is the compact record the sink appends per scan
type outcomeEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	URL       string        `json:"url"`
	Score     int           `json:"score"`
	Verdict   risk.Verdict  `json:"verdict"`
	Category  risk.Category `json:"category"`
	RedFlags  []string      `json:"red_flags,omitempty"`
}

// Sink is a best-effort, non-blocking recorder of scan outcomes for later
// offline analysis. It has its own error boundary: a full queue drops the
// entry and a write failure is logged, neither ever reaches the scan
// response path.
type Sink struct {
	entries chan outcomeEntry
	done    chan struct{}
	path    string
}

// NewSink starts a sink appending JSONL records under dataDir
func NewSink(dataDir string) *Sink {
	s := &Sink{
		entries: make(chan outcomeEntry, 128),
		done:    make(chan struct{}),
		path:    filepath.Join(dataDir, "outcomes.jsonl"),
	}
	go s.run()
	return s
}

// Record enqueues a scan outcome without blocking. Dropped when the queue
// is full.
func (s *Sink) Record(out *Outcome) {
	entry := outcomeEntry{
		Timestamp: out.Timestamp,
		URL:       out.URL,
		Score:     out.Assessment.OverallScore,
		Verdict:   out.Assessment.Verdict,
		Category:  out.Category,
		RedFlags:  out.Assessment.RedFlags,
	}
	select {
	case s.entries <- entry:
	default:
		// Queue full - losing a learning record is acceptable
	}
}

// Close drains the queue and stops the sink
func (s *Sink) Close() {
	close(s.entries)
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		log.Printf("[sink] disabled, cannot create %s: %v", filepath.Dir(s.path), err)
		for range s.entries {
			// Drain to keep Record non-blocking
		}
		return
	}

	for entry := range s.entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Printf("[sink] write failed: %v", err)
			continue
		}
		f.Write(append(data, '\n'))
		f.Close()
	}
}
