package admin

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultLiveInterval is how often the live visitor figure moves.
const DefaultLiveInterval = 5 * time.Second

// LiveVisitors is the cosmetic "online now" figure shown while the admin
// dashboard is open. It starts between 5 and 16 and drifts by at most one
// per tick, never below 1.
type LiveVisitors struct {
	interval time.Duration
	intn     func(n int) int

	mu      sync.Mutex
	value   int
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewLiveVisitors returns a stopped ticker. A nil intn uses math/rand/v2.
func NewLiveVisitors(interval time.Duration, intn func(n int) int) *LiveVisitors {
	if interval <= 0 {
		interval = DefaultLiveInterval
	}
	if intn == nil {
		intn = rand.IntN
	}
	return &LiveVisitors{interval: interval, intn: intn}
}

// Start seeds the figure and begins drifting it until ctx ends or Stop is
// called. Starting a running ticker is a no-op.
func (l *LiveVisitors) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.value = l.intn(12) + 5
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	l.running = true
	go l.loop(ctx, l.done)
}

func (l *LiveVisitors) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return
		case <-ticker.C:
			l.Step()
		}
	}
}

// Step applies one drift of -1, 0 or +1.
func (l *LiveVisitors) Step() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = max(1, l.value+l.intn(3)-1)
	return l.value
}

// Stop halts the ticker and waits for its goroutine to exit.
func (l *LiveVisitors) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Value is the current figure; zero before the first Start.
func (l *LiveVisitors) Value() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Running reports whether the ticker is active.
func (l *LiveVisitors) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
