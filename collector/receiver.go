package collector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"framecast/internal/wire"
)

// ErrTruncatedStream reports a sender that closed the connection before
// the wire terminator arrived. The partial payload is discarded.
var ErrTruncatedStream = errors.New("receiver: stream ended without terminator")

// FrameSink commits reassembled frames to numbered files. The sequence
// counter is monotonic across connections; the write lock is held across
// the whole open/write/close of one file so concurrent receivers never
// interleave commits or share a slot.
type FrameSink struct {
	dir string

	mu   sync.Mutex
	next int
}

// NewFrameSink creates dir if needed.
func NewFrameSink(dir string) (*FrameSink, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, fmt.Errorf("sink: mkdir %s: %w", dir, err)
	}
	return &FrameSink{dir: dir}, nil
}

// Commit writes payload to the next numbered file and returns the slot.
// The counter advances only on success, so a failed write leaves no gap.
func (s *FrameSink) Commit(payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.next
	path := filepath.Join(s.dir, fmt.Sprintf("cap_%06d.ppm", slot))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return 0, fmt.Errorf("sink: open %s: %w", path, err)
	}
	n, err := f.Write(payload)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("sink: write %s: %w", path, err)
	}
	if n != len(payload) {
		return 0, fmt.Errorf("sink: short write to %s: %d of %d bytes", path, n, len(payload))
	}
	s.next++
	return slot, nil
}

// Committed returns how many frames have been committed so far.
func (s *FrameSink) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// ReadFrame reassembles one wire message from r. The stream carries no
// length prefix; the only terminator is the trailing 3-byte sentinel, so
// the buffer grows in whole bufSize increments until the terminator shows
// up at the end of a read.
// The returned payload has the terminator stripped.
func ReadFrame(r io.Reader, bufSize int) ([]byte, error) {
	buf := make([]byte, bufSize)
	total := 0
	for {
		if total == len(buf) {
			grown := make([]byte, len(buf)+bufSize)
			copy(grown, buf)
			buf = grown
		}
		n, err := r.Read(buf[total:])
		total += n
		if n > 0 && buf[total-1] == 0x04 {
			if payload, ok := wire.Strip(buf[:total]); ok {
				return payload, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil, ErrTruncatedStream
			}
			return nil, fmt.Errorf("receiver: read: %w", err)
		}
	}
}
