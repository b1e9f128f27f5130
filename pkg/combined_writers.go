package pkg

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
)

// CombinedWriter copies every write to all of its writers; the panel uses it to
// send logs both to stdout and to the rotated log file
type CombinedWriter struct {
	mutex   sync.Mutex
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		Writers: append([]io.Writer{}, writers...),
	}
}

// Write keeps going past failing writers. It reports len(p) only if every
// writer took all of p, otherwise the smallest count and all errors combined.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	n := len(p)
	var err error
	for i, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr == nil && written < len(p) {
			werr = io.ErrShortWrite
		}
		if werr != nil {
			err = multierr.Append(err, fmt.Errorf("writer %d: %w", i, werr))
		}
		n = min(n, written)
	}
	return n, err
}
