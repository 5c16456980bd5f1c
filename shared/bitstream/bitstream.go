// Package bitstream is the sequential bit-level reader/writer messages
// serialize through. A Stream is either writing or reading, and message
// codecs call the same methods in the same order in both directions.
//
// Multi-byte values are laid out little-endian, one byte at a time.
// Booleans take a single bit. The stream is padded to a byte boundary
// when the written bytes are taken.
package bitstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/icza/bitio"
)

// ErrTruncated is reported when a read runs past the end of the stream.
var ErrTruncated = errors.New("bitstream: read past end of stream")

// MaxStringLen bounds strings carried on the wire (u16 length prefix).
const MaxStringLen = math.MaxUint16

type Stream struct {
	buf *bytes.Buffer
	w   *bitio.Writer
	r   *bitio.Reader
	err error
}

// NewWriter returns a stream in write mode.
func NewWriter() *Stream {
	buf := &bytes.Buffer{}
	return &Stream{buf: buf, w: bitio.NewWriter(buf)}
}

// NewReader returns a stream in read mode over data.
func NewReader(data []byte) *Stream {
	return &Stream{r: bitio.NewReader(bytes.NewReader(data))}
}

// Writing reports whether the stream is in write mode.
func (s *Stream) Writing() bool {
	return s.w != nil
}

// Err returns the first error the stream hit. Once set, every further
// call is a no-op.
func (s *Stream) Err() error {
	return s.err
}

// Bytes flushes pending bits and returns the written bytes.
func (s *Stream) Bytes() ([]byte, error) {
	if !s.Writing() {
		return nil, errors.New("bitstream: Bytes called on a reader")
	}
	if s.err != nil {
		return nil, s.err
	}
	if _, err := s.w.Align(); err != nil {
		return nil, fmt.Errorf("bitstream: align: %w", err)
	}
	return s.buf.Bytes(), nil
}

func (s *Stream) fail(err error) {
	if s.err != nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrTruncated
	}
	s.err = err
}

// bits moves the low n bits of *v through the stream. The value is split
// into bytes, least significant first.
func (s *Stream) bits(v *uint64, n uint8) {
	if s.err != nil {
		return
	}
	if s.Writing() {
		x := *v
		for n > 0 {
			take := min(n, 8)
			if err := s.w.WriteBits(x&(1<<take-1), take); err != nil {
				s.fail(err)
				return
			}
			x >>= take
			n -= take
		}
		return
	}
	var out uint64
	var shift uint8
	for n > 0 {
		take := min(n, 8)
		b, err := s.r.ReadBits(take)
		if err != nil {
			s.fail(err)
			return
		}
		out |= b << shift
		shift += take
		n -= take
	}
	*v = out
}

func (s *Stream) Uint8(v *uint8) {
	x := uint64(*v)
	s.bits(&x, 8)
	*v = uint8(x)
}

func (s *Stream) Uint16(v *uint16) {
	x := uint64(*v)
	s.bits(&x, 16)
	*v = uint16(x)
}

func (s *Stream) Uint32(v *uint32) {
	x := uint64(*v)
	s.bits(&x, 32)
	*v = uint32(x)
}

func (s *Stream) Uint64(v *uint64) {
	s.bits(v, 64)
}

func (s *Stream) Int32(v *int32) {
	x := uint64(uint32(*v))
	s.bits(&x, 32)
	*v = int32(uint32(x))
}

// Float32 carries the IEEE-754 bits unchanged.
func (s *Stream) Float32(v *float32) {
	x := uint64(math.Float32bits(*v))
	s.bits(&x, 32)
	*v = math.Float32frombits(uint32(x))
}

// Bool takes one bit.
func (s *Stream) Bool(v *bool) {
	if s.err != nil {
		return
	}
	if s.Writing() {
		if err := s.w.WriteBool(*v); err != nil {
			s.fail(err)
		}
		return
	}
	b, err := s.r.ReadBool()
	if err != nil {
		s.fail(err)
		return
	}
	*v = b
}

// String is a u16 length followed by the raw bytes.
func (s *Stream) String(v *string) {
	if s.err != nil {
		return
	}
	if s.Writing() && len(*v) > MaxStringLen {
		s.fail(fmt.Errorf("bitstream: string of %d bytes exceeds %d", len(*v), MaxStringLen))
		return
	}
	n := uint16(len(*v))
	s.Uint16(&n)
	if s.err != nil {
		return
	}
	if s.Writing() {
		for i := 0; i < len(*v); i++ {
			b := (*v)[i]
			s.Uint8(&b)
		}
		return
	}
	raw := make([]byte, n)
	for i := range raw {
		s.Uint8(&raw[i])
	}
	if s.err == nil {
		*v = string(raw)
	}
}
