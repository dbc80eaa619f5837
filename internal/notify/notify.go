package notify

import (
	"log/slog"
	"sync"
)

// Notifier surfaces a short, transient message to the shopper or operator.
type Notifier interface {
	Notify(msg string)
}

// Func adapts a plain function to Notifier.
type Func func(msg string)

// Notify calls f(msg).
func (f Func) Notify(msg string) { f(msg) }

// Discard drops every notice.
var Discard Notifier = Func(func(string) {})

// Log writes notices to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Notifier that logs each notice at info level.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

// Notify logs msg.
func (l *Log) Notify(msg string) {
	l.logger.Info("notice", "message", msg)
}

// Recorder keeps the most recent notices in memory, newest last.
type Recorder struct {
	mu    sync.Mutex
	limit int
	msgs  []string
}

// NewRecorder keeps at most limit notices; limit <= 0 keeps 20.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 20
	}
	return &Recorder{limit: limit}
}

// Notify appends msg, evicting the oldest notice when full.
func (r *Recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	if len(r.msgs) > r.limit {
		r.msgs = r.msgs[len(r.msgs)-r.limit:]
	}
}

// Drain returns the recorded notices and forgets them.
func (r *Recorder) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify forwards msg to every non-nil notifier.
func (m Multi) Notify(msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(msg)
		}
	}
}
