package bitstream

import (
	"errors"
	"math"
	"testing"
)

func TestLittleEndianLayout(t *testing.T) {
	s := NewWriter()
	v := uint32(0x04030201)
	s.Uint32(&v)
	got, err := s.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if string(got) != string(want) {
		t.Fatalf("layout=% x, want % x", got, want)
	}
}

func TestMixedFieldsRoundTrip(t *testing.T) {
	var (
		u8   = uint8(0xAB)
		flag = true
		u64  = uint64(0xDEADBEEFCAFEBABE)
		f    = float32(-1.5)
		i    = int32(-42)
		str  = "127.0.0.1:27015"
		off  = false
	)
	w := NewWriter()
	w.Uint8(&u8)
	w.Bool(&flag)
	w.Uint64(&u64)
	w.Bool(&off)
	w.Float32(&f)
	w.Int32(&i)
	w.String(&str)
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	var (
		gu8   uint8
		gflag bool
		gu64  uint64
		goff  = true
		gf    float32
		gi    int32
		gstr  string
	)
	r := NewReader(data)
	r.Uint8(&gu8)
	r.Bool(&gflag)
	r.Uint64(&gu64)
	r.Bool(&goff)
	r.Float32(&gf)
	r.Int32(&gi)
	r.String(&gstr)
	if err := r.Err(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if gu8 != u8 || gflag != flag || gu64 != u64 || goff != off || gf != f || gi != i || gstr != str {
		t.Fatalf("round trip mismatch: %x %v %x %v %v %d %q", gu8, gflag, gu64, goff, gf, gi, gstr)
	}
}

func TestFloatBitsPreserved(t *testing.T) {
	nan := math.Float32frombits(0x7fc00001)
	w := NewWriter()
	w.Float32(&nan)
	data, _ := w.Bytes()

	var got float32
	r := NewReader(data)
	r.Float32(&got)
	if math.Float32bits(got) != 0x7fc00001 {
		t.Fatalf("bits=%x, want 7fc00001", math.Float32bits(got))
	}
}

func TestReadPastEnd(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	var v uint32
	r.Uint32(&v)
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("err=%v, want ErrTruncated", r.Err())
	}

	// Later calls keep the first error and leave values alone.
	var b uint8 = 7
	r.Uint8(&b)
	if b != 7 {
		t.Fatalf("value changed after error: %d", b)
	}
}

func TestTruncatedString(t *testing.T) {
	w := NewWriter()
	n := uint16(10)
	w.Uint16(&n)
	data, _ := w.Bytes()

	var s string
	r := NewReader(append(data, 'a', 'b'))
	r.String(&s)
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("err=%v, want ErrTruncated", r.Err())
	}
	if s != "" {
		t.Fatalf("partial string leaked: %q", s)
	}
}

func TestBytesOnReader(t *testing.T) {
	if _, err := NewReader(nil).Bytes(); err == nil {
		t.Fatalf("expected error from Bytes on a reader")
	}
}
