package network

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/shared/protocol"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap/zaptest"
)

func newRegistry(t *testing.T) *protocol.Registry {
	t.Helper()
	r := protocol.NewRegistry()
	if err := protocol.RegisterMessages(r); err != nil {
		t.Fatalf("RegisterMessages: %v", err)
	}
	return r
}

func TestLoopbackJoinsImmediately(t *testing.T) {
	l := NewLoopback(NewBotSource(2), zaptest.NewLogger(t))
	if err := l.Send([]byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send before connect = %v, want ErrNotConnected", err)
	}
	l.Connect("", &messages.Handshake{Version: "dev", SpawnProfile: 1})
	if l.State() != StateJoinedGame {
		t.Fatalf("state = %v, want joined", l.State())
	}
	if l.PeerID() != LocalPeer {
		t.Fatalf("peer = %d, want %d", l.PeerID(), LocalPeer)
	}
	if err := l.Send([]byte{1, 2}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := l.Sent(); len(got) != 1 {
		t.Fatalf("sent %d frames, want 1", len(got))
	}
	l.Disconnect()
	if l.Receive() != nil {
		t.Fatalf("Receive after disconnect returned frames")
	}
}

func TestBotSourceSpawnsThenUpdates(t *testing.T) {
	reg := newRegistry(t)
	src := NewBotSource(3)

	first, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first poll = %d frames, want 3", len(first))
	}
	peers := map[messages.PeerID]bool{}
	for _, f := range first {
		msg, err := reg.Decode(f)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		spawn, ok := msg.(*messages.HumanSpawn)
		if !ok {
			t.Fatalf("first frame is %T, want spawn", msg)
		}
		if spawn.Peer == LocalPeer {
			t.Fatalf("bot uses the local peer id")
		}
		peers[spawn.Peer] = true
	}
	if len(peers) != 3 {
		t.Fatalf("bots share peer ids: %v", peers)
	}

	second, _ := src.Next()
	for _, f := range second {
		msg, err := reg.Decode(f)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if _, ok := msg.(*messages.HumanUpdate); !ok {
			t.Fatalf("second poll frame is %T, want update", msg)
		}
	}
}

func TestBotSourceChurns(t *testing.T) {
	reg := newRegistry(t)
	src := NewBotSource(1)
	var despawns, spawns int
	for i := 0; i < botChurn*2; i++ {
		frames, err := src.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		for _, f := range frames {
			msg, _ := reg.Decode(f)
			switch msg.(type) {
			case *messages.HumanSpawn:
				spawns++
			case *messages.HumanDespawn:
				despawns++
			}
		}
	}
	if despawns == 0 || spawns < 2 {
		t.Fatalf("spawns=%d despawns=%d, want churn", spawns, despawns)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCaptureWriter(&buf)
	if err != nil {
		t.Fatalf("NewCaptureWriter: %v", err)
	}
	records := []CaptureRecord{
		{Tick: 10, Frame: []byte{7, 1, 2}},
		{Tick: 10, Frame: []byte{8}},
		{Tick: 12, Frame: []byte{9, 9}},
	}
	for _, r := range records {
		if err := w.Record(r.Tick, r.Frame); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadCapture(&buf)
	if err != nil {
		t.Fatalf("ReadCapture: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("read %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i].Tick != records[i].Tick || !bytes.Equal(got[i].Frame, records[i].Frame) {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], records[i])
		}
	}

	src := NewCaptureSource(got)
	polls := [][]int{{2}, {0}, {1}}
	for i, want := range polls {
		frames, err := src.Next()
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if len(frames) != want[0] {
			t.Fatalf("poll %d returned %d frames, want %d", i, len(frames), want[0])
		}
	}
	if _, err := src.Next(); !errors.Is(err, ErrSourceExhausted) {
		t.Fatalf("Next after end = %v, want ErrSourceExhausted", err)
	}
}

func TestCaptureReplayEndsLoopbackSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures", "session.cap.zst")
	w, err := CreateCapture(path)
	if err != nil {
		t.Fatalf("CreateCapture: %v", err)
	}
	frame, err := protocol.Encode(&messages.HumanDespawn{Peer: 4, Reason: messages.DespawnLeft})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := w.Record(1, frame); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenCaptureSource(path)
	if err != nil {
		t.Fatalf("OpenCaptureSource: %v", err)
	}
	l := NewLoopback(src, zaptest.NewLogger(t))
	l.Connect("", &messages.Handshake{})
	if got := l.Receive(); len(got) != 1 || !bytes.Equal(got[0], frame) {
		t.Fatalf("Receive = %v, want the recorded frame", got)
	}
	l.Receive()
	if l.State() != StateError || !errors.Is(l.LastError(), ErrSourceExhausted) {
		t.Fatalf("state = %v err = %v, want error/exhausted", l.State(), l.LastError())
	}
	if !IsDown(l) {
		t.Fatalf("IsDown = false after replay ended")
	}
}

func TestReadCaptureRejectsShortFrame(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	// Header claims ten bytes, only two follow.
	_, _ = enc.Write([]byte{1, 0, 0, 0, 10, 0, 0, 0, 0xAA, 0xBB})
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := ReadCapture(&buf); !errors.Is(err, ErrCorruptCapture) {
		t.Fatalf("ReadCapture = %v, want ErrCorruptCapture", err)
	}
}
