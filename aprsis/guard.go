package aprsis

import (
	"sync"

	"github.com/temoto/alive/v2"
)

// guard ties background tasks to connection lifetime.
// Each connection half holds one reference.
// Last release stops all tasks, even parked ones, runs onStop (closes the socket)
// and waits for tasks to exit.
type guard struct {
	alive  *alive.Alive
	mu     sync.Mutex
	refs   int
	onStop func()
}

func newGuard(refs int, onStop func()) *guard {
	return &guard{
		alive:  alive.NewAlive(),
		refs:   refs,
		onStop: onStop,
	}
}

// spawn runs task in background until guard is released.
// Task must return promptly after StopChan() is closed.
func (g *guard) spawn(task func(stopch <-chan struct{})) bool {
	if !g.alive.Add(1) {
		return false
	}
	go func() {
		defer g.alive.Done()
		task(g.alive.StopChan())
	}()
	return true
}

// release drops one reference. Returns true when that was the last one.
// Blocks until background tasks exit.
func (g *guard) release() bool {
	g.mu.Lock()
	if g.refs <= 0 {
		g.mu.Unlock()
		return false
	}
	g.refs--
	last := g.refs == 0
	g.mu.Unlock()
	if !last {
		return false
	}
	g.alive.Stop()
	// onStop before Wait unblocks a task stuck in socket write
	if g.onStop != nil {
		g.onStop()
	}
	g.alive.Wait()
	return true
}

func (g *guard) running() bool { return g.alive.IsRunning() }
