// Package filestore keeps a homogeneous collection of entities in memory and
// mirrors it to a single JSON file. Every mutation rewrites the whole file.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrStorageUnavailable = errors.New("storage unavailable")

// Entity is a value type identified by a store-assigned integer id.
type Entity[T any] interface {
	EntityID() int
	WithID(id int) T
}

// Cloner is implemented by entities holding reference-typed fields. The
// store hands out and keeps only clones of such values.
type Cloner[T any] interface {
	Clone() T
}

func clone[T any](e T) T {
	if c, ok := any(e).(Cloner[T]); ok {
		return c.Clone()
	}
	return e
}

// Observer receives the outcome of every snapshot write.
type Observer interface {
	ObservePersist(store string, took time.Duration, err error)
}

type Option func(*options)

type options struct {
	log *zap.Logger
	obs Observer
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.obs = obs }
}

// Store guards entities, nextID and the backing file with one mutex. The
// critical section of a mutating call spans the in-memory change and the
// file write.
type Store[T Entity[T]] struct {
	name string
	path string
	log  *zap.Logger
	obs  Observer

	mu       sync.Mutex
	entities map[int]T
	nextID   int
}

// Open loads the file at path. A missing or unparsable file is reported as
// ErrStorageUnavailable.
func Open[T Entity[T]](name, path string, opts ...Option) (*Store[T], error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[T]{
		name: name,
		path: path,
		log:  o.log.With(zap.String("store", name)),
		obs:  o.obs,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Bootstrap creates an empty collection file at path unless one exists.
func Bootstrap(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store[T]) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, s.path, err)
	}

	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrStorageUnavailable, s.path, err)
	}

	s.entities = make(map[int]T, len(list))
	s.nextID = 0
	for _, e := range list {
		id := e.EntityID()
		s.entities[id] = e
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}

	s.log.Info("store loaded", zap.String("path", s.path), zap.Int("entities", len(s.entities)), zap.Int("next_id", s.nextID))
	return nil
}

func (s *Store[T]) Name() string { return s.name }

func (s *Store[T]) Path() string { return s.path }

// Ping reports whether the backing file is still reachable.
func (s *Store[T]) Ping() error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store[T]) Create(draft T) (T, error) {
	var created T
	err := s.Atomically(func(tx *Tx[T]) error {
		created = tx.Create(draft)
		return nil
	})
	return created, err
}

func (s *Store[T]) Get(id int) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	return clone(e), ok
}

// Update replaces the stored value with the same id. A missing id is not an
// error: it returns false and leaves the store untouched.
func (s *Store[T]) Update(e T) (T, bool, error) {
	var found bool
	err := s.Atomically(func(tx *Tx[T]) error {
		found = tx.Put(e)
		return nil
	})
	if !found {
		var zero T
		return zero, false, err
	}
	return e, true, err
}

func (s *Store[T]) Delete(id int) (bool, error) {
	var removed bool
	err := s.Atomically(func(tx *Tx[T]) error {
		removed = tx.Delete(id)
		return nil
	})
	return removed, err
}

func (s *Store[T]) List() []T {
	return s.Filter(nil)
}

// Filter returns the entities accepted by keep, in ascending id order. A nil
// keep accepts everything.
func (s *Store[T]) Filter(keep func(T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(keep)
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

func (s *Store[T]) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// Atomically runs fn while holding the store lock and writes one snapshot
// afterwards if fn changed anything. Changes made before fn returns an error
// are kept. A failed write leaves memory ahead of the file.
func (s *Store[T]) Atomically(fn func(tx *Tx[T]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx[T]{s: s}
	fnErr := fn(tx)
	tx.s = nil

	if !tx.dirty {
		return fnErr
	}
	if err := s.persist(); err != nil {
		if fnErr != nil {
			return errors.Join(fnErr, err)
		}
		return err
	}
	return fnErr
}

func (s *Store[T]) snapshot(keep func(T) bool) []T {
	out := make([]T, 0, len(s.entities))
	for _, e := range s.entities {
		if keep == nil || keep(e) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

func (s *Store[T]) persist() error {
	start := time.Now()
	err := s.writeSnapshot()
	if s.obs != nil {
		s.obs.ObservePersist(s.name, time.Since(start), err)
	}
	if err != nil {
		s.log.Error("persist failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store[T]) writeSnapshot() error {
	raw, err := json.MarshalIndent(s.snapshot(nil), "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
