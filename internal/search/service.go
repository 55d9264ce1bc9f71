package search

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"vsg/api/internal/docstore"
)

const (
	BackendMeili = "meilisearch"
	BackendScan  = "scan"
)

// Observer counts queries per backend.
type Observer interface {
	ObserveSearch(backend string)
}

// Service is the facade that tries the external index first and falls back to
// scanning the store's current snapshot.
type Service struct {
	backend  Backend
	source   Source
	log      *zap.Logger
	observer Observer
	pending  sync.WaitGroup
}

// Recoverer is a backend that reports when it becomes reachable again.
type Recoverer interface {
	OnRecover(fn func())
}

// NewService creates a search service. backend may be nil if no index is
// configured. Updates are not queued while the backend is down, so a backend
// that is also a Recoverer gets a full reindex each time it comes back.
func NewService(backend Backend, source Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{backend: backend, source: source, log: logger.Named("search")}
	if r, ok := backend.(Recoverer); ok {
		r.OnRecover(s.resync)
	}
	return s
}

func (s *Service) resync() {
	s.log.Info("index reachable again, reindexing")
	s.ReindexAll()
}

func (s *Service) SetObserver(o Observer) { s.observer = o }

func (s *Service) observe(backend string) {
	if s.observer != nil {
		s.observer.ObserveSearch(backend)
	}
}

// Search tries the index if healthy, otherwise scans the snapshot. Index hits
// for records that no longer exist are dropped.
func (s *Service) Search(q Query) Response {
	snapshot := s.source.Snapshot()
	if s.backend != nil && s.backend.Healthy() {
		results, total, err := s.backend.Search(q)
		if err == nil {
			live := liveIDs(snapshot)
			kept := make([]Result, 0, len(results))
			for _, r := range results {
				if _, ok := live[r.Type][r.ID]; ok {
					kept = append(kept, r)
				}
			}
			total -= len(results) - len(kept)
			s.observe(BackendMeili)
			return Response{Results: kept, Total: total, Query: q.Text, Backend: BackendMeili}
		}
		s.log.Warn("index error, falling back to scan", zap.Error(err))
	}

	news, faq, rules := records(snapshot)
	results, total := scan(q, news, faq, rules)
	s.observe(BackendScan)
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendScan}
}

func (s *Service) async(what string, fn func() error) {
	if s.backend == nil || !s.backend.Healthy() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := fn(); err != nil {
			s.log.Warn("index update failed", zap.String("op", what), zap.Error(err))
		}
	}()
}

// IndexNews indexes a news item (fire-and-forget).
func (s *Service) IndexNews(n docstore.News) {
	s.async("index news", func() error { return s.backend.IndexNews([]NewsRecord{newsRecord(n)}) })
}

// IndexFAQ indexes a FAQ entry (fire-and-forget).
func (s *Service) IndexFAQ(f docstore.FAQEntry) {
	s.async("index faq", func() error { return s.backend.IndexFAQ([]FAQRecord{faqRecord(f)}) })
}

// IndexRule indexes a rule (fire-and-forget).
func (s *Service) IndexRule(r docstore.Rule) {
	s.async("index rule", func() error { return s.backend.IndexRules([]RuleRecord{ruleRecord(r)}) })
}

// DeleteNews removes a news item from the index (fire-and-forget).
func (s *Service) DeleteNews(id int64) {
	s.async("delete news", func() error { return s.backend.Delete(ResultNews, strconv.FormatInt(id, 10)) })
}

// DeleteFAQ removes a FAQ entry from the index (fire-and-forget).
func (s *Service) DeleteFAQ(id int64) {
	s.async("delete faq", func() error { return s.backend.Delete(ResultFAQ, strconv.FormatInt(id, 10)) })
}

// DeleteRule removes a rule from the index (fire-and-forget).
func (s *Service) DeleteRule(id docstore.RuleID) {
	s.async("delete rule", func() error { return s.backend.Delete(ResultRule, id.String()) })
}

// ReindexAll pushes every searchable record of the current snapshot. Records
// removed since the last push stay in the index but are filtered out of results.
func (s *Service) ReindexAll() {
	if s.backend == nil || !s.backend.Healthy() {
		return
	}
	news, faq, rules := records(s.source.Snapshot())
	if err := s.backend.IndexNews(news); err != nil {
		s.log.Warn("reindex news", zap.Error(err))
	}
	if err := s.backend.IndexFAQ(faq); err != nil {
		s.log.Warn("reindex faq", zap.Error(err))
	}
	if err := s.backend.IndexRules(rules); err != nil {
		s.log.Warn("reindex rules", zap.Error(err))
	}
}

// Wait blocks until queued index updates have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
