// Package mod wires the bridge, the message registry and the lifecycle
// states together and owns bootstrap and shutdown.
package mod

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/config"
	"github.com/automoto/coopmod/network"
	"github.com/automoto/coopmod/scenes"
	"github.com/automoto/coopmod/shared/protocol"
	"github.com/automoto/coopmod/statemachine"
	"go.uber.org/zap"
)

var (
	ErrAlreadyInitialized = errors.New("mod already initialized")
	ErrNotInitialized     = errors.New("mod not initialized")
)

// Named objects seeded at Init.
const (
	ObjectSession  = "coopmod.session"
	ObjectBridge   = "coopmod.bridge"
	ObjectRegistry = "coopmod.registry"
	ObjectConfig   = "coopmod.config"
)

// Host is the game the mod runs inside.
type Host interface {
	// SetTickHook registers the per-frame callback. The host calls it once
	// per frame on its game thread.
	SetTickHook(fn func(dt time.Duration) error)
	// Wake asks for another frame even if nothing keeps the host awake.
	Wake()
	// RequestExit hands control back to the host for good.
	RequestExit()
}

type Mod struct {
	cfg  config.Config
	host Host
	log  *zap.Logger
	now  func() time.Time

	newTransport        func() network.Transport
	newOfflineTransport func() (network.Transport, error)

	bridge   *bridge.Bridge
	registry *protocol.Registry
	session  *scenes.Session
	machine  *statemachine.Machine

	initialized  atomic.Bool
	shutdownOnce sync.Once
	exited       atomic.Bool
}

type Option func(*Mod)

func WithLogger(log *zap.Logger) Option {
	return func(m *Mod) { m.log = log }
}

// WithTransport replaces the websocket client used for live sessions.
func WithTransport(fn func() network.Transport) Option {
	return func(m *Mod) { m.newTransport = fn }
}

// WithOfflineTransport replaces the source of offline debug sessions.
func WithOfflineTransport(fn func() (network.Transport, error)) Option {
	return func(m *Mod) { m.newOfflineTransport = fn }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mod) { m.now = now }
}

func New(cfg config.Config, host Host, opts ...Option) *Mod {
	m := &Mod{
		cfg:  cfg,
		host: host,
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.Named("mod")
	m.bridge = bridge.New(cfg.GameThreadQueueSize, m.log)
	m.registry = protocol.NewRegistry()
	if m.newTransport == nil {
		m.newTransport = func() network.Transport {
			return network.NewClient(m.registry, m.log)
		}
	}
	if m.newOfflineTransport == nil {
		m.newOfflineTransport = m.defaultOfflineTransport
	}
	return m
}

// Init brings the mod up. It must run exactly once, before any work is
// queued on the game thread.
func (m *Mod) Init() error {
	if !m.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	if err := protocol.RegisterMessages(m.registry); err != nil {
		return fmt.Errorf("register messages: %w", err)
	}

	m.session = scenes.NewSession(m.cfg.Endpoint, m.cfg.SpawnProfile)
	objects := m.bridge.Objects
	objects.Set(ObjectSession, m.session)
	objects.Set(ObjectBridge, m.bridge)
	objects.Set(ObjectRegistry, m.registry)
	objects.Set(ObjectConfig, &m.cfg)

	m.machine = statemachine.New(m.log)
	deps := &scenes.Deps{
		Config:              &m.cfg,
		Bridge:              m.bridge,
		Session:             m.session,
		Registry:            m.registry,
		NewTransport:        m.newTransport,
		NewOfflineTransport: m.newOfflineTransport,
		Shutdown:            m.shutdown,
		Now:                 m.now,
		Log:                 m.log,
	}
	if err := scenes.Build(m.machine, deps); err != nil {
		return fmt.Errorf("build states: %w", err)
	}

	m.bridge.GameThread.SetWakeHook(m.host.Wake)
	m.host.SetTickHook(m.Tick)

	if err := m.machine.Start(scenes.Menu); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	m.log.Info("initialized", zap.String("endpoint", m.cfg.Endpoint), zap.String("version", m.cfg.Version))
	return nil
}

// Tick is the per-frame hook: queued game-thread work first, then the
// state machine. Failed transitions are logged, not returned.
func (m *Mod) Tick(dt time.Duration) error {
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	if m.exited.Load() {
		return nil
	}
	m.bridge.GameThread.TickGameThread(dt)
	if err := m.machine.Update(dt); err != nil {
		m.log.Warn("state transition failed", zap.Error(err))
	}
	return nil
}

// RunOnGameThread queues fn for the next tick.
func (m *Mod) RunOnGameThread(priority int, fn func()) error {
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	return m.bridge.GameThread.RunOnGameThread(priority, fn)
}

// RequestShutdown asks for the Shutdown state on the next tick. Asking
// again once shutdown started is a no-op.
func (m *Mod) RequestShutdown() error {
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	err := m.bridge.GameThread.RunOnGameThread(bridge.PriorityHigh, func() {
		if m.machine.CurrentID() == scenes.Shutdown {
			return
		}
		if err := m.machine.RequestNextState(scenes.Shutdown); err != nil {
			m.log.Warn("shutdown request rejected", zap.Error(err))
		}
	})
	if errors.Is(err, bridge.ErrShuttingDown) {
		return nil
	}
	return err
}

// shutdown runs once, from the Shutdown state.
func (m *Mod) shutdown() {
	m.shutdownOnce.Do(func() {
		released := m.bridge.KeepAwake.ReleaseAll()

		m.bridge.GameThread.BeginShutdown()
		drained := m.bridge.GameThread.Drain()

		destroyed := m.session.Teardown(m.log)
		m.session.ReleaseAwake()

		m.bridge.Commands.Close()
		cleared := m.bridge.Objects.Clear()

		m.log.Info("shut down",
			zap.Strings("keepAwake", released),
			zap.Int("drained", drained),
			zap.Int("actors", destroyed),
			zap.Int("objects", len(cleared)))

		m.exited.Store(true)
		m.host.RequestExit()
	})
}

func (m *Mod) defaultOfflineTransport() (network.Transport, error) {
	var src network.Source
	if m.cfg.OfflineCapture != "" {
		cs, err := network.OpenCaptureSource(m.cfg.OfflineCapture)
		if err != nil {
			return nil, err
		}
		m.log.Info("replaying capture", zap.String("path", m.cfg.OfflineCapture), zap.Int("frames", cs.Remaining()))
		src = cs
	} else {
		src = network.NewBotSource(m.cfg.OfflineBots)
	}
	return network.NewLoopback(src, m.log), nil
}

func (m *Mod) Bridge() *bridge.Bridge {
	return m.bridge
}

func (m *Mod) Session() *scenes.Session {
	return m.session
}

func (m *Mod) Machine() *statemachine.Machine {
	return m.machine
}

func (m *Mod) Registry() *protocol.Registry {
	return m.registry
}

func (m *Mod) Config() config.Config {
	return m.cfg
}

// Exited reports whether the shutdown sequence has completed.
func (m *Mod) Exited() bool {
	return m.exited.Load()
}
