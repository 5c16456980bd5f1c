package scenes

import (
	"strconv"
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/components"
	"github.com/automoto/coopmod/network"
	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/systems"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
	"go.uber.org/zap"
)

// Session is the in-memory record of the current play session. It is
// published as a named object so the host can show it. Game thread only.
type Session struct {
	CurrentState       string
	LastRequestedState string

	Endpoint         string
	LocalPeer        messages.PeerID
	OwnProfile       uint64
	Offline          bool
	DisconnectReason string

	transport network.Transport
	pipeline  *pipeline
	awake     *bridge.KeepAwakeToken
}

func NewSession(endpoint string, profile uint64) *Session {
	return &Session{Endpoint: endpoint, OwnProfile: profile, awake: &bridge.KeepAwakeToken{}}
}

// Live reports whether a transport is attached.
func (s *Session) Live() bool {
	return s.transport != nil
}

func (s *Session) Transport() network.Transport {
	return s.transport
}

// ActorCount returns the number of live replication actors.
func (s *Session) ActorCount() int {
	if s.pipeline == nil {
		return 0
	}
	return s.pipeline.sync.Replicator().Count()
}

// Peers lists the remote peers that currently have an actor.
func (s *Session) Peers() []messages.PeerID {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.sync.Replicator().Peers()
}

// Actor returns the replicated state for peer.
func (s *Session) Actor(peer messages.PeerID) (components.HumanData, bool) {
	if s.pipeline == nil {
		return components.HumanData{}, false
	}
	return s.pipeline.sync.Replicator().Actor(peer)
}

// Status is the summary returned by the session status command.
func (s *Session) Status() map[string]string {
	return map[string]string{
		"state":   s.CurrentState,
		"actors":  strconv.Itoa(s.ActorCount()),
		"peer":    strconv.FormatUint(uint64(s.LocalPeer), 10),
		"offline": strconv.FormatBool(s.Offline),
	}
}

func (s *Session) attach(t network.Transport, offline bool) {
	s.transport = t
	s.Offline = offline
	s.LocalPeer = 0
	s.DisconnectReason = ""
}

// holdAwake moves tok's keep-awake into the session.
func (s *Session) holdAwake(tok *bridge.KeepAwakeToken) {
	s.awake.MoveAssign(tok)
}

// ReleaseAwake drops the session-scoped keep-awake, if any.
func (s *Session) ReleaseAwake() {
	s.awake.Release()
}

// Teardown disconnects the transport and destroys every actor. It returns
// the number of actors destroyed. Safe to call with nothing attached.
func (s *Session) Teardown(log *zap.Logger) int {
	destroyed := 0
	if s.pipeline != nil {
		destroyed = s.pipeline.close(log)
		s.pipeline = nil
	}
	if s.transport != nil {
		s.transport.Disconnect()
		s.transport = nil
		log.Info("session torn down", zap.Int("actors", destroyed))
	}
	s.LocalPeer = 0
	return destroyed
}

// pipeline is the per-session replication world: an ecs with the net sync
// system registered.
type pipeline struct {
	ecs     *ecs.ECS
	sync    *systems.NetSync
	capture *network.CaptureWriter
}

func newPipeline(d *Deps, t network.Transport, capturePath string) *pipeline {
	e := ecs.NewECS(donburi.NewWorld())
	cfg := d.Config
	rep := systems.NewReplicator(e, systems.ReplicatorConfig{
		BufferSize:   cfg.UpdateBufferSize,
		BufferWindow: cfg.UpdateBufferWindow,
		Now:          d.Now,
	}, d.Log)
	ns := systems.NewNetSync(t, d.Registry, rep, systems.NetSyncConfig{
		SelfUpdateEvery: cfg.SelfUpdateEvery,
		SpawnProfile:    d.Session.OwnProfile,
		ErrorLimit:      cfg.ProtocolErrorLimit,
		ErrorWindow:     cfg.ProtocolErrorWindow,
		Now:             d.Now,
	}, d.Log)
	e.AddSystem(ns.Update)

	p := &pipeline{ecs: e, sync: ns}
	if capturePath != "" {
		w, err := network.CreateCapture(capturePath)
		if err != nil {
			d.Log.Warn("capture disabled", zap.String("path", capturePath), zap.Error(err))
		} else {
			d.Log.Info("capturing inbound frames", zap.String("path", capturePath))
			p.capture = w
			ns.SetCapture(w)
		}
	}
	return p
}

// update runs one frame of the pipeline and reports why it stopped, if it did.
func (p *pipeline) update() error {
	p.ecs.Update()
	return p.sync.Err()
}

func (p *pipeline) close(log *zap.Logger) int {
	n := p.sync.Replicator().DestroyAll()
	if p.capture != nil {
		p.sync.SetCapture(nil)
		if err := p.capture.Close(); err != nil {
			log.Warn("closing capture", zap.Error(err))
		}
		p.capture = nil
	}
	return n
}

// startPipeline attaches the replication pipeline to the session's transport.
func (d *Deps) startPipeline(capturePath string) {
	if d.Session.pipeline != nil || d.Session.transport == nil {
		return
	}
	d.Session.pipeline = newPipeline(d, d.Session.transport, capturePath)
}

// elapsed is the time since start on the deps clock.
func (d *Deps) elapsed(start time.Time) time.Duration {
	return d.Now().Sub(start)
}
