package trajectory

import (
	"fmt"
	"os"
)

// FileRecorder is a Recorder backed by a truncated-on-open file, the
// on-disk counterpart to an in-memory Recorder for long-running or
// post-hoc-inspectable tasks.
type FileRecorder struct {
	*Recorder
	file *os.File
}

// NewFileRecorder creates (truncating if present) a JSONL trajectory file
// at path and returns a Recorder writing to it.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trajectory: create %q: %w", path, err)
	}
	return &FileRecorder{Recorder: NewRecorder(f), file: f}, nil
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
