package executor

import "sync"

// defaultTailSize bounds how much subprocess output is kept for diagnostics.
const defaultTailSize = 64 * 1024

// tailBuffer is an io.Writer that keeps only the last max bytes written.
// It is safe for concurrent use; the dev-server pumps write to one buffer
// from two goroutines.
type tailBuffer struct {
	mu      sync.Mutex
	buf     []byte
	max     int
	dropped bool
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = defaultTailSize
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.dropped = true
	}
	return len(p), nil
}

// String returns the retained output, marked when older output was dropped.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dropped {
		return "...\n" + string(b.buf)
	}
	return string(b.buf)
}
