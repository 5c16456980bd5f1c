package network

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxCaptureFrame bounds a single recorded frame so a corrupt length
// cannot trigger a huge allocation.
const maxCaptureFrame = 1 << 20

var ErrCorruptCapture = errors.New("corrupt capture")

// CaptureWriter records inbound frames as a zstd stream of
// {tick u32, len u32, frame} records.
type CaptureWriter struct {
	mu  sync.Mutex
	f   io.Closer
	enc *zstd.Encoder
	w   *bufio.Writer
}

// CreateCapture creates (or truncates) a capture file at path.
func CreateCapture(path string) (*CaptureWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewCaptureWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.f = f
	return w, nil
}

func NewCaptureWriter(dst io.Writer) (*CaptureWriter, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &CaptureWriter{enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (c *CaptureWriter) Record(tick uint32, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return os.ErrClosed
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], tick)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(frame)))
	if _, err := c.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := c.w.Write(frame)
	return err
}

func (c *CaptureWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return nil
	}
	err := c.w.Flush()
	if cerr := c.enc.Close(); err == nil {
		err = cerr
	}
	if c.f != nil {
		if cerr := c.f.Close(); err == nil {
			err = cerr
		}
	}
	c.w, c.enc, c.f = nil, nil, nil
	return err
}

type CaptureRecord struct {
	Tick  uint32
	Frame []byte
}

// ReadCapture decodes every record in a capture stream.
func ReadCapture(src io.Reader) ([]CaptureRecord, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	r := bufio.NewReader(dec)
	var out []CaptureRecord
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%w: %v", ErrCorruptCapture, err)
		}
		n := binary.LittleEndian.Uint32(hdr[4:8])
		if n > maxCaptureFrame {
			return out, fmt.Errorf("%w: frame length %d", ErrCorruptCapture, n)
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(r, frame); err != nil {
			return out, fmt.Errorf("%w: %v", ErrCorruptCapture, err)
		}
		out = append(out, CaptureRecord{Tick: binary.LittleEndian.Uint32(hdr[0:4]), Frame: frame})
	}
}

// CaptureSource replays recorded frames, one recorded tick per poll.
// Gaps between recorded ticks are replayed as empty polls.
type CaptureSource struct {
	records []CaptureRecord
	next    int
	tick    uint32
}

func NewCaptureSource(records []CaptureRecord) *CaptureSource {
	s := &CaptureSource{records: records}
	if len(records) > 0 {
		s.tick = records[0].Tick
	}
	return s
}

// OpenCaptureSource loads a capture file for replay.
func OpenCaptureSource(path string) (*CaptureSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := ReadCapture(f)
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", path, err)
	}
	return NewCaptureSource(records), nil
}

func (s *CaptureSource) Next() ([][]byte, error) {
	if s.next >= len(s.records) {
		return nil, ErrSourceExhausted
	}
	var frames [][]byte
	for s.next < len(s.records) && s.records[s.next].Tick <= s.tick {
		frames = append(frames, s.records[s.next].Frame)
		s.next++
	}
	s.tick++
	return frames, nil
}

func (s *CaptureSource) Remaining() int {
	return len(s.records) - s.next
}
