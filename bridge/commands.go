package bridge

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrChannelClosed = errors.New("bridge: command channel closed")
	ErrNoSubscribers = errors.New("bridge: no subscribers")
)

// Direction of a command channel.
type Direction string

const (
	NativeToEmbedded Direction = "native->embedded"
	EmbeddedToNative Direction = "embedded->native"
)

// CompletionFunc receives the result params, and an empty error string on
// success or the failure text otherwise.
type CompletionFunc func(result map[string]string, errText string)

// Command is one named request travelling over a channel. Its completion
// runs exactly once, whichever of Complete or Fail comes first.
type Command struct {
	ID     string
	Name   string
	Params map[string]string

	once       sync.Once
	onComplete CompletionFunc
	ch         *Channel
}

// Param returns a parameter or "".
func (c *Command) Param(key string) string {
	return c.Params[key]
}

// Complete reports success with result params.
func (c *Command) Complete(result map[string]string) {
	c.finish(result, "")
}

// Fail reports err to the sender.
func (c *Command) Fail(err error) {
	if err == nil {
		err = errors.New("command failed")
	}
	c.finish(nil, err.Error())
}

func (c *Command) finish(result map[string]string, errText string) {
	c.once.Do(func() {
		if c.ch != nil {
			c.ch.forget(c.ID)
		}
		if c.onComplete != nil {
			c.onComplete(result, errText)
		}
	})
}

// Handler receives commands emitted on a channel.
type Handler func(cmd *Command)

// Channel is a multicast command stream for one subsystem and direction.
type Channel struct {
	subsystem string
	direction Direction

	mu          sync.Mutex
	subs        map[int]Handler
	nextSub     int
	outstanding map[string]*Command
	closed      bool

	log *zap.Logger
}

func newChannel(subsystem string, dir Direction, log *zap.Logger) *Channel {
	return &Channel{
		subsystem:   subsystem,
		direction:   dir,
		subs:        make(map[int]Handler),
		outstanding: make(map[string]*Command),
		log:         log.With(zap.String("subsystem", subsystem), zap.String("direction", string(dir))),
	}
}

// Subscribe adds h and returns the func removing it.
func (ch *Channel) Subscribe(h Handler) (unsubscribe func()) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return func() {}
	}
	id := ch.nextSub
	ch.nextSub++
	ch.subs[id] = h
	var once sync.Once
	return func() {
		once.Do(func() {
			ch.mu.Lock()
			delete(ch.subs, id)
			ch.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (ch *Channel) Subscribers() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.subs)
}

// Emit delivers a command to every subscriber. When nobody is listening,
// or the channel is closed, onComplete runs right away with an error.
func (ch *Channel) Emit(name string, params map[string]string, onComplete CompletionFunc) *Command {
	cmd := &Command{
		ID:         uuid.NewString(),
		Name:       name,
		Params:     params,
		onComplete: onComplete,
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		cmd.Fail(fmt.Errorf("%s %s: %w", ch.subsystem, name, ErrChannelClosed))
		return cmd
	}
	if len(ch.subs) == 0 {
		ch.mu.Unlock()
		cmd.Fail(fmt.Errorf("%s %s: %w", ch.subsystem, name, ErrNoSubscribers))
		return cmd
	}
	cmd.ch = ch
	ch.outstanding[cmd.ID] = cmd
	handlers := make([]Handler, 0, len(ch.subs))
	for _, id := range slices.Sorted(maps.Keys(ch.subs)) {
		handlers = append(handlers, ch.subs[id])
	}
	ch.mu.Unlock()

	ch.log.Debug("emit", zap.String("command", name), zap.String("id", cmd.ID))
	for _, h := range handlers {
		h(cmd)
	}
	return cmd
}

// Outstanding returns the number of emitted commands not yet completed.
func (ch *Channel) Outstanding() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.outstanding)
}

func (ch *Channel) forget(id string) {
	ch.mu.Lock()
	delete(ch.outstanding, id)
	ch.mu.Unlock()
}

// close drops every subscription and fails the commands still waiting.
func (ch *Channel) close() {
	ch.mu.Lock()
	ch.closed = true
	clear(ch.subs)
	pending := make([]*Command, 0, len(ch.outstanding))
	for _, cmd := range ch.outstanding {
		pending = append(pending, cmd)
	}
	ch.mu.Unlock()

	for _, cmd := range pending {
		cmd.Fail(fmt.Errorf("%s %s: %w", ch.subsystem, cmd.Name, ErrShuttingDown))
	}
}

type channelKey struct {
	subsystem string
	direction Direction
}

// Commands holds the command channels of every subsystem.
type Commands struct {
	mu       sync.Mutex
	channels map[channelKey]*Channel
	closed   bool
	log      *zap.Logger
}

func NewCommands(log *zap.Logger) *Commands {
	return &Commands{
		channels: make(map[channelKey]*Channel),
		log:      log.Named("commands"),
	}
}

// NativeToEmbedded returns the channel the host uses to call into the mod.
func (c *Commands) NativeToEmbedded(subsystem string) *Channel {
	return c.channel(subsystem, NativeToEmbedded)
}

// EmbeddedToNative returns the channel the mod uses to call the host.
func (c *Commands) EmbeddedToNative(subsystem string) *Channel {
	return c.channel(subsystem, EmbeddedToNative)
}

func (c *Commands) channel(subsystem string, dir Direction) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := channelKey{subsystem, dir}
	ch, ok := c.channels[key]
	if !ok {
		ch = newChannel(subsystem, dir, c.log)
		if c.closed {
			ch.closed = true
		}
		c.channels[key] = ch
	}
	return ch
}

// Close unregisters every subscription and fails outstanding commands.
// Channels fetched afterwards are closed too.
func (c *Commands) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	channels := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	for _, ch := range channels {
		ch.close()
	}
}
