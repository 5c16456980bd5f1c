package systems

import (
	"errors"
	"fmt"
	"time"

	"github.com/automoto/coopmod/network"
	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/shared/protocol"
	"github.com/yohamta/donburi/ecs"
	"go.uber.org/zap"
)

var (
	ErrTooManyProtocolErrors = errors.New("too many protocol errors")
	ErrTransportLost         = errors.New("transport lost")
)

type NetSyncConfig struct {
	SelfUpdateEvery int
	SpawnProfile    uint64
	ErrorLimit      int
	ErrorWindow     time.Duration
	Now             func() time.Time
}

// NetSync is the per-frame network system: it drains the transport,
// dispatches human messages to the replicator and sends the self update.
// Once it fails it stays failed; the owning state reads Err and leaves.
type NetSync struct {
	transport  network.Transport
	registry   *protocol.Registry
	replicator *Replicator
	failures   *protocol.FailureWindow
	capture    *network.CaptureWriter
	handlers   map[messages.ID]func(messages.Message)

	selfEvery int
	profile   uint64
	now       func() time.Time
	err       error

	log *zap.Logger
}

func NewNetSync(t network.Transport, reg *protocol.Registry, rep *Replicator, cfg NetSyncConfig, log *zap.Logger) *NetSync {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	n := &NetSync{
		transport:  t,
		registry:   reg,
		replicator: rep,
		failures:   protocol.NewFailureWindow(cfg.ErrorLimit, cfg.ErrorWindow),
		selfEvery:  cfg.SelfUpdateEvery,
		profile:    cfg.SpawnProfile,
		now:        cfg.Now,
		log:        log.Named("netsync"),
	}
	n.handlers = map[messages.ID]func(messages.Message){
		messages.IDHumanSpawn: func(m messages.Message) {
			rep.Spawn(m.(*messages.HumanSpawn))
		},
		messages.IDHumanDespawn: func(m messages.Message) {
			rep.Despawn(m.(*messages.HumanDespawn))
		},
		messages.IDHumanUpdate: func(m messages.Message) {
			rep.Update(m.(*messages.HumanUpdate))
		},
		messages.IDHumanSelfUpdate: func(messages.Message) {
			n.log.Debug("ignoring inbound self update")
		},
	}
	return n
}

// SetCapture records every inbound frame to w. Pass nil to stop.
func (n *NetSync) SetCapture(w *network.CaptureWriter) {
	n.capture = w
}

// Err returns why the system stopped, or nil while it is healthy.
func (n *NetSync) Err() error {
	return n.err
}

func (n *NetSync) Replicator() *Replicator {
	return n.replicator
}

// Update runs one network tick. It is registered as an ecs system.
func (n *NetSync) Update(_ *ecs.ECS) {
	if n.err != nil {
		return
	}
	if network.IsDown(n.transport) {
		n.err = fmt.Errorf("%w: %v", ErrTransportLost, network.DownError(n.transport))
		return
	}
	if peer := n.transport.PeerID(); peer != 0 {
		n.replicator.SetLocalPeer(peer)
	}

	n.replicator.ExpirePending()
	tick := n.replicator.Advance()

	for _, frame := range n.transport.Receive() {
		n.record(tick, frame)
		if !n.dispatch(frame) {
			return
		}
	}

	if n.selfEvery > 0 && tick%uint64(n.selfEvery) == 0 {
		n.sendSelfUpdate()
	}
}

// dispatch decodes and routes one frame. It returns false once protocol
// errors escalate.
func (n *NetSync) dispatch(frame []byte) bool {
	msg, err := n.registry.Decode(frame)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrFrameworkMessage):
		n.log.Debug("skipping framework frame", zap.Error(err))
		return true
	case protocol.IsProtocolError(err):
		n.log.Warn("dropping bad frame", zap.Error(err))
		if n.failures.Record(n.now()) {
			n.err = fmt.Errorf("%w: %d within window", ErrTooManyProtocolErrors, n.failures.Count())
			n.log.Error("protocol error limit reached", zap.Error(n.err))
			return false
		}
		return true
	default:
		n.log.Warn("decode failed", zap.Error(err))
		return true
	}

	handler, ok := n.handlers[msg.ID()]
	if !ok {
		// Framework messages are handled by the transport.
		return true
	}
	handler(msg)
	return true
}

func (n *NetSync) sendSelfUpdate() {
	frame, err := protocol.Encode(&messages.HumanSelfUpdate{SpawnProfile: n.profile})
	if err != nil {
		n.log.Error("encode self update", zap.Error(err))
		return
	}
	if err := n.transport.Send(frame); err != nil {
		n.log.Warn("send self update", zap.Error(err))
	}
}

func (n *NetSync) record(tick uint64, frame []byte) {
	if n.capture == nil {
		return
	}
	if err := n.capture.Record(uint32(tick), frame); err != nil {
		n.log.Warn("capture failed, stopping capture", zap.Error(err))
		n.capture = nil
	}
}
