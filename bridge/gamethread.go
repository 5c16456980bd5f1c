package bridge

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull    = errors.New("bridge: game thread queue full")
	ErrShuttingDown = errors.New("bridge: shutting down")
)

// Common priorities. Any int works; higher runs first.
const (
	PriorityLow    = -10
	PriorityNormal = 0
	PriorityHigh   = 10
)

type task struct {
	priority int
	seq      uint64
	fn       func()
}

// taskQueue orders by priority, then by enqueue order.
type taskQueue []task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x any)   { *q = append(*q, x.(task)) }
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = task{}
	*q = old[:n-1]
	return t
}

// GameThread queues work from any goroutine and runs it when the host
// ticks the game thread.
type GameThread struct {
	mu      sync.Mutex
	queue   taskQueue
	held    []task // queued during the current tick
	seq     uint64
	limit   int
	closing bool

	notify chan struct{}
	woken  atomic.Bool
	wake   atomic.Pointer[func()]

	log *zap.Logger
}

// NewGameThread returns a queue holding at most limit pending tasks.
func NewGameThread(limit int, log *zap.Logger) *GameThread {
	return &GameThread{
		limit:  limit,
		notify: make(chan struct{}, 1),
		log:    log.Named("gamethread"),
	}
}

// SetWakeHook installs the host callback used to schedule another frame.
func (g *GameThread) SetWakeHook(fn func()) {
	if fn == nil {
		g.wake.Store(nil)
		return
	}
	g.wake.Store(&fn)
}

// RunOnGameThread enqueues fn. Safe from any goroutine. The enqueue fails
// rather than dropping work when the queue is full or shutdown began.
func (g *GameThread) RunOnGameThread(priority int, fn func()) error {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		return ErrShuttingDown
	}
	if g.limit > 0 && len(g.queue)+len(g.held) >= g.limit {
		g.mu.Unlock()
		return ErrQueueFull
	}
	g.seq++
	heap.Push(&g.queue, task{priority: priority, seq: g.seq, fn: fn})
	g.mu.Unlock()

	select {
	case g.notify <- struct{}{}:
	default:
	}
	g.WakeGameThread()
	return nil
}

// TickGameThread runs queued work. Only the tasks queued at entry are
// considered, so a task that re-enqueues itself waits for the next tick
// whatever its priority. It returns the number of tasks run.
func (g *GameThread) TickGameThread(dt time.Duration) int {
	g.mu.Lock()
	snapshot := g.seq
	g.mu.Unlock()

	ran := 0
	for g.runQueuedBy(snapshot) {
		ran++
	}

	g.mu.Lock()
	g.releaseHeld()
	g.mu.Unlock()
	return ran
}

// releaseHeld returns held tasks to the queue. g.mu must be held.
func (g *GameThread) releaseHeld() {
	for _, t := range g.held {
		heap.Push(&g.queue, t)
	}
	clear(g.held)
	g.held = g.held[:0]
}

// runQueuedBy runs the next task enqueued at or before seq. Newer tasks
// popped on the way are held until the tick ends.
func (g *GameThread) runQueuedBy(seq uint64) bool {
	g.mu.Lock()
	for len(g.queue) > 0 {
		t := heap.Pop(&g.queue).(task)
		if t.seq > seq {
			g.held = append(g.held, t)
			continue
		}
		g.mu.Unlock()
		g.run(t)
		return true
	}
	g.mu.Unlock()
	return false
}

// WakeGameThread asks the host for at least one more frame.
func (g *GameThread) WakeGameThread() {
	g.woken.Store(true)
	if fn := g.wake.Load(); fn != nil {
		(*fn)()
	}
}

// ConsumeWake reports and clears a pending wake request.
func (g *GameThread) ConsumeWake() bool {
	return g.woken.Swap(false)
}

// ForceTick runs game-thread work from inside an otherwise blocking
// operation. It keeps servicing the queue for at least minSlice, waiting for
// new work if the queue runs dry, and stops once maxSlice has elapsed.
func (g *GameThread) ForceTick(id string, minSlice, maxSlice time.Duration) int {
	if maxSlice < minSlice {
		maxSlice = minSlice
	}
	start := time.Now()
	deadline := start.Add(maxSlice)
	ran := 0
	for time.Now().Before(deadline) {
		if g.runOne() {
			ran++
			continue
		}
		elapsed := time.Since(start)
		if elapsed >= minSlice {
			break
		}
		timer := time.NewTimer(minSlice - elapsed)
		select {
		case <-g.notify:
		case <-timer.C:
		}
		timer.Stop()
	}
	g.log.Debug("force tick", zap.String("id", id), zap.Int("ran", ran), zap.Duration("took", time.Since(start)))
	return ran
}

// BeginShutdown stops accepting work. Work already queued still runs.
func (g *GameThread) BeginShutdown() {
	g.mu.Lock()
	g.closing = true
	g.mu.Unlock()
}

// Drain runs everything queued, including work queued by drained tasks
// before BeginShutdown took effect.
func (g *GameThread) Drain() int {
	g.mu.Lock()
	g.releaseHeld()
	g.mu.Unlock()

	ran := 0
	for g.runOne() {
		ran++
	}
	return ran
}

// Len returns the number of pending tasks.
func (g *GameThread) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue) + len(g.held)
}

func (g *GameThread) runOne() bool {
	g.mu.Lock()
	if len(g.queue) == 0 {
		g.mu.Unlock()
		return false
	}
	t := heap.Pop(&g.queue).(task)
	g.mu.Unlock()

	g.run(t)
	return true
}

func (g *GameThread) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("game thread task panicked", zap.Int("priority", t.priority), zap.Any("panic", r))
		}
	}()
	t.fn()
}
