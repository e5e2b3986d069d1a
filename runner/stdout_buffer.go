package runner

import (
	"strings"
	"sync"
)

const (
	// testOutputTailBytes bounds the output retained per test function
	testOutputTailBytes = 512 * 1024

	// workerOutputTailBytes bounds the stdout retained per worker process
	workerOutputTailBytes = 5 * 1024 * 1024

	// maxEventLineBytes bounds a single go test -json line
	maxEventLineBytes = 1024 * 1024
)

// tailBuffer keeps only the last N bytes written to it so a representative
// snippet of output can be attached to results without retaining entire
// logs in memory.
type tailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
	overflow bool
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = workerOutputTailBytes
	}
	return &tailBuffer{
		maxBytes: maxBytes,
		contents: make([]byte, 0, min(maxBytes, 64*1024)),
	}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
		b.overflow = true
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]byte, len(b.contents))
	copy(cp, b.contents)
	return cp
}

// String returns the retained tail, prefixed with a truncation note when
// earlier output was dropped.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.overflow {
		return string(b.contents)
	}
	var sb strings.Builder
	sb.WriteString("[...output truncated...]\n")
	sb.Write(b.contents)
	return sb.String()
}

func (b *tailBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *tailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}
