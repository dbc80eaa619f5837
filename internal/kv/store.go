package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gulf-store/internal/metrics"
	"gulf-store/internal/notify"
)

// UnavailableNotice is surfaced once when writes start failing.
const UnavailableNotice = "تعذر حفظ التغييرات على هذا الجهاز، ستبقى مؤقتة حتى تتوفر مساحة التخزين"

// ErrUnavailable wraps every backend write failure.
var ErrUnavailable = errors.New("kv: storage unavailable")

// Backend is durable key-value storage holding one opaque blob per key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Table describes one persisted concern: its stable key, schema version,
// fallback value and the migration applied to blobs written by older versions.
type Table[T any] struct {
	Key     string
	Version int
	Default func() T
	// Migrate upgrades data stored at version from to the table's current
	// version. Nil means older data decodes as-is.
	Migrate func(from int, raw json.RawMessage) (json.RawMessage, error)
}

func (t Table[T]) fallback() T {
	if t.Default == nil {
		var zero T
		return zero
	}
	return t.Default()
}

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

type subscriber struct {
	id int
	fn func(any)
}

// Store is the write-through persisted store shared by every component.
type Store struct {
	backend  Backend
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier notify.Notifier

	mu       sync.Mutex
	degraded bool

	subMu  sync.Mutex
	nextID int
	subs   map[string][]subscriber
}

// Option customises a Store.
type Option func(*Store)

// WithMetrics records storage failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithNotifier sets where the one-shot storage notice goes.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// New wraps a backend.
func New(backend Backend, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		logger:   logger.With("component", "kv"),
		notifier: notify.Discard,
		subs:     map[string][]subscriber{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Degraded reports whether the last write failed.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Load returns the table's value, or its default when the key is absent,
// unreadable, corrupt, or cannot be migrated.
func Load[T any](ctx context.Context, s *Store, t Table[T]) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load(ctx, s, t)
}

// Save replaces the table's value. Failures are logged and reported once to
// the notifier; the returned error lets callers that need all-or-nothing
// semantics react, everyone else may ignore it.
func Save[T any](ctx context.Context, s *Store, t Table[T], v T) error {
	s.mu.Lock()
	err := save(ctx, s, t, v)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(t.Key, v)
	return nil
}

// Update loads the table, applies fn and saves the result as one step.
func Update[T any](ctx context.Context, s *Store, t Table[T], fn func(T) T) (T, error) {
	s.mu.Lock()
	next := fn(load(ctx, s, t))
	err := save(ctx, s, t, next)
	s.mu.Unlock()
	if err != nil {
		return next, err
	}
	s.publish(t.Key, next)
	return next, nil
}

// Delete removes a key; the next Load returns the table default.
func Delete(ctx context.Context, s *Store, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(ctx, key); err != nil {
		s.writeFailed(key, "delete", err)
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	s.degraded = false
	return nil
}

// Subscribe registers fn to receive the table's value after every successful
// write. The returned function cancels the subscription.
func Subscribe[T any](s *Store, t Table[T], fn func(T)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[t.Key] = append(s.subs[t.Key], subscriber{id: id, fn: func(v any) {
		if tv, ok := v.(T); ok {
			fn(tv)
		}
	}})
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		list := s.subs[t.Key]
		for i, sub := range list {
			if sub.id == id {
				s.subs[t.Key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) publish(key string, v any) {
	s.subMu.Lock()
	list := append([]subscriber(nil), s.subs[key]...)
	s.subMu.Unlock()
	for _, sub := range list {
		sub.fn(v)
	}
}

func load[T any](ctx context.Context, s *Store, t Table[T]) T {
	raw, ok, err := s.backend.Get(ctx, t.Key)
	if err != nil {
		s.readFailed(t.Key, "read", err)
		return t.fallback()
	}
	if !ok {
		return t.fallback()
	}

	version, data := unwrap(raw)
	if version > t.Version {
		s.readFailed(t.Key, "version", fmt.Errorf("stored version %d newer than %d", version, t.Version))
		return t.fallback()
	}
	if version < t.Version && t.Migrate != nil {
		migrated, err := t.Migrate(version, data)
		if err != nil {
			s.readFailed(t.Key, "migrate", err)
			return t.fallback()
		}
		data = migrated
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.readFailed(t.Key, "decode", err)
		return t.fallback()
	}
	return v
}

func save[T any](ctx context.Context, s *Store, t Table[T], v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.writeFailed(t.Key, "encode", err)
		return fmt.Errorf("%w: encode %s: %v", ErrUnavailable, t.Key, err)
	}
	blob, err := json.Marshal(envelope{Version: t.Version, Data: data})
	if err != nil {
		s.writeFailed(t.Key, "encode", err)
		return fmt.Errorf("%w: encode %s: %v", ErrUnavailable, t.Key, err)
	}
	if err := s.backend.Put(ctx, t.Key, blob); err != nil {
		s.writeFailed(t.Key, "write", err)
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, t.Key, err)
	}
	s.degraded = false
	return nil
}

// unwrap splits a stored blob into its schema version and payload. Blobs
// written without an envelope are version 0.
func unwrap(raw []byte) (int, json.RawMessage) {
	var probe struct {
		Version *int            `json:"version"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Version == nil || probe.Data == nil {
		return 0, raw
	}
	return *probe.Version, probe.Data
}

func (s *Store) readFailed(key, op string, err error) {
	s.logger.Warn("persisted table unreadable, using default", "table", key, "op", op, "error", err)
	if s.metrics != nil {
		s.metrics.StorageErrors.WithLabelValues(key, op).Inc()
	}
}

// writeFailed must be called with s.mu held.
func (s *Store) writeFailed(key, op string, err error) {
	s.logger.Warn("persisted table write dropped", "table", key, "op", op, "error", err)
	if s.metrics != nil {
		s.metrics.StorageErrors.WithLabelValues(key, op).Inc()
	}
	if !s.degraded {
		s.degraded = true
		s.notifier.Notify(UnavailableNotice)
	}
}
