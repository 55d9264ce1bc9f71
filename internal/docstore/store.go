package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"vsg/api/internal/slot"
)

const dateLayout = "2006-01-02"

// Load outcomes reported to an Observer.
const (
	LoadRestored    = "restored"
	LoadSeeded      = "seeded"
	LoadCorrupt     = "corrupt"
	LoadUnavailable = "unavailable"
)

// Observer receives persistence events, typically for metrics.
type Observer interface {
	ObserveLoad(outcome string)
	ObservePersist(elapsed time.Duration, size int, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveLoad(string)                       {}
func (nopObserver) ObservePersist(time.Duration, int, error) {}

// Store owns the document tree. Every mutation changes memory first and then
// writes the whole tree to the slot; a failed write is logged and memory is kept.
type Store struct {
	mu       sync.Mutex
	slot     slot.Slot
	log      *zap.Logger
	now      func() time.Time
	observer Observer
	title    string
	defaults Defaults
	tree     Tree
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithSiteTitle(title string) Option {
	return func(s *Store) { s.title = title }
}

// Open builds the store over a slot and loads the stored document.
func Open(ctx context.Context, sl slot.Slot, opts ...Option) *Store {
	s := &Store{
		slot:     sl,
		log:      zap.NewNop(),
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.defaults = DefaultsFor(s.title, s.now().UTC())
	s.Load(ctx)
	return s
}

// Defaults returns the administrator and settings used when the document lacks them.
func (s *Store) Defaults() Defaults {
	return s.defaults
}

// Load replaces the tree with the stored document, or with seed data when the
// slot is empty, unreadable or holds something that is not a document.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.slot.Read(ctx)
	switch {
	case errors.Is(err, slot.ErrEmpty):
		s.log.Info("no stored document, seeding")
		s.observer.ObserveLoad(LoadSeeded)
	case err != nil:
		s.log.Error("read document", zap.Error(err))
		s.observer.ObserveLoad(LoadUnavailable)
	default:
		payload, perr := ParsePayload(data)
		if perr == nil {
			tree, issues := Normalize(payload, s.defaults)
			s.logIssues("load", issues)
			s.tree = tree
			s.observer.ObserveLoad(LoadRestored)
			return
		}
		s.log.Error("stored document is corrupt, seeding", zap.Error(perr), zap.Int("bytes", len(data)))
		s.observer.ObserveLoad(LoadCorrupt)
	}
	s.tree = Seed(s.now(), s.defaults)
	s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) {
	s.tree.LastUpdate = s.now().UTC()
	data, err := json.Marshal(s.tree)
	if err != nil {
		s.log.Error("encode document", zap.Error(err))
		s.observer.ObservePersist(0, 0, err)
		return
	}
	start := time.Now()
	err = s.slot.Write(ctx, data)
	s.observer.ObservePersist(time.Since(start), len(data), err)
	if err != nil {
		s.log.Error("persist document", zap.Error(err), zap.Int("bytes", len(data)))
	}
}

func (s *Store) logIssues(stage string, issues []error) {
	for _, issue := range issues {
		s.log.Warn("record kept verbatim", zap.String("stage", stage), zap.Error(issue))
	}
}

func (s *Store) today() string {
	return s.now().UTC().Format(dateLayout)
}

// nextID is one more than the largest id, or 1 for an empty collection.
func nextID[T any](items []T, id func(T) int64) int64 {
	var max int64
	for _, item := range items {
		if v := id(item); v > max {
			max = v
		}
	}
	return max + 1
}

func removeFirst[T any](items []T, match func(T) bool) ([]T, bool) {
	for i, item := range items {
		if match(item) {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}
