package network

import (
	"errors"
	"math"
	"sync"

	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/shared/protocol"
	"go.uber.org/zap"
)

// LocalPeer is the peer id a loopback session assigns to the local player.
const LocalPeer messages.PeerID = 1

// Source produces the inbound frames for one loopback poll.
type Source interface {
	Next() ([][]byte, error)
}

// Loopback is an in-process transport for offline sessions. It joins
// immediately and feeds frames from a Source instead of a socket.
type Loopback struct {
	mu        sync.Mutex
	state     ClientState
	lastError error
	source    Source
	sent      [][]byte
	log       *zap.Logger
}

func NewLoopback(source Source, log *zap.Logger) *Loopback {
	return &Loopback{state: StateDisconnected, source: source, log: log.Named("loopback")}
}

func (l *Loopback) Connect(endpoint string, hello *messages.Handshake) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateJoinedGame
	l.lastError = nil
	l.log.Info("offline session joined", zap.Uint64("profile", hello.SpawnProfile))
}

func (l *Loopback) State() ClientState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loopback) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastError
}

func (l *Loopback) PeerID() messages.PeerID {
	return LocalPeer
}

func (l *Loopback) Receive() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateJoinedGame {
		return nil
	}
	frames, err := l.source.Next()
	if err != nil {
		l.state = StateError
		l.lastError = err
		return frames
	}
	return frames
}

func (l *Loopback) Send(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateJoinedGame {
		return ErrNotConnected
	}
	l.sent = append(l.sent, frame)
	if len(l.sent) > outboundQueueSize {
		l.sent = l.sent[1:]
	}
	return nil
}

// Sent returns the frames the session sent, oldest first.
func (l *Loopback) Sent() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.sent...)
}

func (l *Loopback) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateDisconnected
}

var _ Transport = (*Loopback)(nil)

// ErrSourceExhausted is returned by sources that have nothing left to replay.
var ErrSourceExhausted = errors.New("source exhausted")

// BotSource simulates remote humans walking in circles. Each bot
// periodically leaves and rejoins so spawn and despawn paths get exercised.
type BotSource struct {
	bots    int
	tick    uint32
	present []bool
	radius  float32
}

const (
	botFirstPeer    = LocalPeer + 1
	botChurn        = 600
	botTicksPerTurn = 240
	botProfile      = 0xB07
)

func NewBotSource(bots int) *BotSource {
	return &BotSource{bots: bots, present: make([]bool, bots), radius: 4}
}

func (b *BotSource) Next() ([][]byte, error) {
	b.tick++
	var frames [][]byte
	for i := 0; i < b.bots; i++ {
		peer := botFirstPeer + messages.PeerID(i)
		phase := (b.tick + uint32(i)*botChurn/uint32(max(b.bots, 1))) % botChurn

		var msg messages.Message
		switch {
		case !b.present[i]:
			b.present[i] = true
			msg = &messages.HumanSpawn{
				Peer:         peer,
				SpawnProfile: botProfile,
				Transform:    b.transform(i),
			}
		case phase == botChurn-1:
			b.present[i] = false
			msg = &messages.HumanDespawn{Peer: peer, Reason: messages.DespawnLeft}
		default:
			msg = &messages.HumanUpdate{
				Peer:      peer,
				Tick:      b.tick,
				Transform: b.transform(i),
				Inputs:    messages.Inputs{MoveY: 1, Yaw: b.yaw(i)},
			}
		}
		frame, err := protocol.Encode(msg)
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (b *BotSource) yaw(i int) float32 {
	turn := float64(b.tick)/botTicksPerTurn + float64(i)/float64(max(b.bots, 1))
	return float32(math.Mod(turn, 1) * 2 * math.Pi)
}

func (b *BotSource) transform(i int) messages.Transform {
	yaw := float64(b.yaw(i))
	t := messages.IdentityTransform
	t.Position = [3]float32{
		b.radius * float32(math.Cos(yaw)),
		0,
		b.radius * float32(math.Sin(yaw)),
	}
	half := yaw / 2
	t.Rotation = [4]float32{0, float32(math.Sin(half)), 0, float32(math.Cos(half))}
	return t
}
