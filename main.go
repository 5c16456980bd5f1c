package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/config"
	"github.com/automoto/coopmod/mod"
	"github.com/automoto/coopmod/scenes"
	"github.com/automoto/coopmod/ui"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"
)

const (
	screenWidth  = 640
	screenHeight = 360
)

// Game hosts the mod: it forwards key presses as menu and session
// commands, calls the tick hook every frame and honors keep-awake.
type Game struct {
	cfg  config.Config
	mod  *mod.Mod
	log  *zap.Logger
	tick func(time.Duration) error
	menu *ui.MenuUI

	last  time.Time
	woken atomic.Bool // set from any goroutine via RunOnGameThread
	exit  bool
}

func (g *Game) SetTickHook(fn func(time.Duration) error) { g.tick = fn }
func (g *Game) Wake()                                    { g.woken.Store(true) }
func (g *Game) RequestExit()                             { g.exit = true }

func (g *Game) Update() error {
	if g.exit {
		return ebiten.Termination
	}

	g.handleKeys()
	g.menu.Update()

	now := time.Now()
	dt := now.Sub(g.last)
	g.last = now
	if g.tick != nil {
		if err := g.tick(dt); err != nil {
			return err
		}
	}

	woken := g.woken.Swap(false)
	awake := g.mod.Bridge().KeepAwake.IsAwakeForTicking() || woken || g.mod.Bridge().GameThread.ConsumeWake()
	if awake {
		ebiten.SetTPS(g.cfg.TickRate)
	} else {
		ebiten.SetTPS(g.cfg.IdleTickRate)
	}

	if g.exit {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		g.connect(g.cfg.Endpoint)
	case inpututil.IsKeyJustPressed(ebiten.KeyO):
		g.command(scenes.MenuChannel, "offline", nil)
	case inpututil.IsKeyJustPressed(ebiten.KeyD):
		g.command(scenes.SessionChannel, "disconnect", nil)
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.command(scenes.SessionChannel, "status", nil)
	case inpututil.IsKeyJustPressed(ebiten.KeyQ):
		g.quit()
	}
}

func (g *Game) connect(endpoint string) {
	if endpoint == "" {
		endpoint = g.cfg.Endpoint
	}
	g.command(scenes.MenuChannel, "connect", map[string]string{"endpoint": endpoint})
}

func (g *Game) quit() {
	if err := g.mod.RequestShutdown(); err != nil {
		g.log.Warn("shutdown request failed", zap.Error(err))
	}
}

func (g *Game) command(subsystem, name string, params map[string]string) {
	g.mod.Bridge().Commands.NativeToEmbedded(subsystem).Emit(name, params, func(result map[string]string, errText string) {
		if errText != "" {
			g.menu.SetStatus(fmt.Sprintf("%s: %s", name, errText))
			return
		}
		g.menu.SetStatus(fmt.Sprintf("%s: %v", name, result))
	})
}

func (g *Game) Draw(screen *ebiten.Image) {
	if !g.mod.Bridge().KeepAwake.IsAwakeForRendering() {
		// Nothing asked for rendering; keep the last frame.
		return
	}
	s := g.mod.Session()
	g.menu.SetSession(
		fmt.Sprintf("state: %s", s.CurrentState),
		fmt.Sprintf("endpoint: %s  peer: %d  actors: %d  last disconnect: %s",
			s.Endpoint, s.LocalPeer, s.ActorCount(), s.DisconnectReason),
	)
	g.menu.UI.Draw(screen)
}

func (g *Game) Layout(int, int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	endpoint := flag.String("endpoint", "", "server endpoint (host:port), overrides config")
	offline := flag.Bool("offline", false, "start an offline debug session")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	g := &Game{cfg: cfg, log: logger.Named("host"), last: time.Now()}
	g.mod = mod.New(cfg, g, mod.WithLogger(logger))
	g.menu = ui.NewMenuUI(cfg.Endpoint, ui.MenuActions{
		Connect:    g.connect,
		Offline:    func() { g.command(scenes.MenuChannel, "offline", nil) },
		Disconnect: func() { g.command(scenes.SessionChannel, "disconnect", nil) },
		Quit:       g.quit,
	})
	if err := g.mod.Init(); err != nil {
		logger.Fatal("init failed", zap.Error(err))
	}

	if *offline {
		g.command(scenes.MenuChannel, "offline", nil)
	}
	if err := g.mod.RunOnGameThread(bridge.PriorityLow, func() {
		g.log.Info("host ready", zap.Int("tps", cfg.TickRate))
	}); err != nil {
		logger.Warn("queue host banner", zap.Error(err))
	}

	ebiten.SetWindowSize(screenWidth*2, screenHeight*2)
	ebiten.SetWindowTitle("coopmod")
	ebiten.SetScreenClearedEveryFrame(false)
	ebiten.SetTPS(cfg.TickRate)

	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		logger.Fatal("game exited", zap.Error(err))
	}
}
