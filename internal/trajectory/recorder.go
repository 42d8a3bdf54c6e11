package trajectory

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Recorder is an append-only sink for Entries, written one JSON object per
// line so a trajectory can be tailed or replayed without parsing a single
// giant document. Multiple producers (the scheduler, tool callbacks) may
// call Record concurrently; writes are serialized internally.
type Recorder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRecorder creates a Recorder writing to w. The caller owns w's
// lifecycle (close it after the Recorder is done, if it is a Closer).
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// Record appends one Entry as a single JSON line. No retention or rotation
// policy is imposed here — that is the caller's concern (see spec §4.F).
func (r *Recorder) Record(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("trajectory: marshal entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(data); err != nil {
		return fmt.Errorf("trajectory: write entry: %w", err)
	}
	if _, err := r.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("trajectory: write entry: %w", err)
	}
	return nil
}
