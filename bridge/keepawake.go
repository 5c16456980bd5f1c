package bridge

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

var (
	ErrRenderingMismatch = errors.New("bridge: keep-awake rendering flag mismatch")
	ErrNotAwake          = errors.New("bridge: requester is not keeping the host awake")
)

type awakeEntry struct {
	count          int
	needsRendering bool
}

// KeepAwake tracks which requesters need the host to keep ticking, and
// whether any of them needs rendered frames. Game thread only.
type KeepAwake struct {
	entries map[string]*awakeEntry
	log     *zap.Logger
}

func NewKeepAwake(log *zap.Logger) *KeepAwake {
	return &KeepAwake{
		entries: make(map[string]*awakeEntry),
		log:     log.Named("keepawake"),
	}
}

// KeepAwake adds one hold for requester. Every hold of a requester must
// agree on needsRendering.
func (k *KeepAwake) KeepAwake(requester string, needsRendering bool) error {
	e, ok := k.entries[requester]
	if !ok {
		k.entries[requester] = &awakeEntry{count: 1, needsRendering: needsRendering}
		k.log.Debug("keep awake", zap.String("requester", requester), zap.Bool("rendering", needsRendering))
		return nil
	}
	if e.needsRendering != needsRendering {
		return fmt.Errorf("%w: %q holds rendering=%v", ErrRenderingMismatch, requester, e.needsRendering)
	}
	e.count++
	return nil
}

// AllowSleep drops one hold for requester.
func (k *KeepAwake) AllowSleep(requester string) error {
	e, ok := k.entries[requester]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotAwake, requester)
	}
	e.count--
	if e.count <= 0 {
		delete(k.entries, requester)
		k.log.Debug("allow sleep", zap.String("requester", requester))
	}
	return nil
}

// IsAwakeForTicking reports whether any requester holds the host awake.
func (k *KeepAwake) IsAwakeForTicking() bool {
	return len(k.entries) > 0
}

// IsAwakeForRendering reports whether any live hold needs rendering.
func (k *KeepAwake) IsAwakeForRendering() bool {
	for _, e := range k.entries {
		if e.needsRendering {
			return true
		}
	}
	return false
}

// Holds returns the hold count for requester.
func (k *KeepAwake) Holds(requester string) int {
	if e, ok := k.entries[requester]; ok {
		return e.count
	}
	return 0
}

// Requesters lists the live requesters, sorted.
func (k *KeepAwake) Requesters() []string {
	out := make([]string, 0, len(k.entries))
	for r := range k.entries {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ReleaseAll drops every hold and returns the requesters that held one.
func (k *KeepAwake) ReleaseAll() []string {
	released := k.Requesters()
	clear(k.entries)
	if len(released) > 0 {
		k.log.Debug("released all keep-awakes", zap.Strings("requesters", released))
	}
	return released
}

// KeepAwakeToken is a scoped keep-awake hold. It holds requester awake
// from Acquire until Release. The zero value and released tokens are inert.
type KeepAwakeToken struct {
	reg            *KeepAwake
	requester      string
	needsRendering bool
	live           bool
}

// Acquire takes a hold for requester and returns the token owning it.
func (k *KeepAwake) Acquire(requester string, needsRendering bool) (*KeepAwakeToken, error) {
	if err := k.KeepAwake(requester, needsRendering); err != nil {
		return nil, err
	}
	return &KeepAwakeToken{reg: k, requester: requester, needsRendering: needsRendering, live: true}, nil
}

// Requester returns the tag the token holds, or "" when inert.
func (t *KeepAwakeToken) Requester() string {
	if t == nil || !t.live {
		return ""
	}
	return t.requester
}

// Live reports whether the token currently holds a keep-awake.
func (t *KeepAwakeToken) Live() bool {
	return t != nil && t.live
}

// Release drops the token's hold. Releasing twice is a no-op.
func (t *KeepAwakeToken) Release() {
	if t == nil || !t.live {
		return
	}
	t.live = false
	if err := t.reg.AllowSleep(t.requester); err != nil {
		// ReleaseAll already cleared the registry.
		t.reg.log.Debug("token release after registry cleared", zap.String("requester", t.requester))
	}
}

// Clone is the copy: a second token with its own hold on the same requester.
func (t *KeepAwakeToken) Clone() (*KeepAwakeToken, error) {
	if !t.Live() {
		return &KeepAwakeToken{}, nil
	}
	return t.reg.Acquire(t.requester, t.needsRendering)
}

// Move transfers the hold to a new token and leaves t inert.
func (t *KeepAwakeToken) Move() *KeepAwakeToken {
	if !t.Live() {
		return &KeepAwakeToken{}
	}
	out := *t
	t.live = false
	return &out
}

// Assign is copy assignment: t releases its current hold, then takes a new
// hold on src's requester. Assigning an inert src leaves t inert.
func (t *KeepAwakeToken) Assign(src *KeepAwakeToken) error {
	if t == src {
		return nil
	}
	t.Release()
	if !src.Live() {
		return nil
	}
	if err := src.reg.KeepAwake(src.requester, src.needsRendering); err != nil {
		return err
	}
	t.reg, t.requester, t.needsRendering, t.live = src.reg, src.requester, src.needsRendering, true
	return nil
}

// MoveAssign releases t's current hold and takes over src's; src becomes inert.
func (t *KeepAwakeToken) MoveAssign(src *KeepAwakeToken) {
	if t == src {
		return
	}
	t.Release()
	if !src.Live() {
		return
	}
	*t = *src
	src.live = false
}
