package docstore

import (
	"context"
	"sort"
	"time"
)

// GetAllNews returns news with the newest date first. Items that share a date
// keep their stored order; undated items sort last.
func (s *Store) GetAllNews() []News {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNews()
}

func (s *Store) sortedNews() []News {
	out := cloneNews(s.tree.News)
	sort.SliceStable(out, func(i, j int) bool {
		di, iok := parseNewsDate(out[i].Date)
		dj, jok := parseNewsDate(out[j].Date)
		if iok != jok {
			return iok
		}
		return di.After(dj)
	})
	return out
}

func parseNewsDate(v string) (time.Time, bool) {
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// GetRecentNews returns the first limit items of GetAllNews. A limit of zero
// or less uses the configured news limit.
func (s *Store) GetRecentNews(limit int) []News {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = s.tree.Settings.Limit()
	}
	all := s.sortedNews()
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *Store) AddNews(ctx context.Context, n News) News {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = nextID(s.tree.News, func(n News) int64 { return n.ID })
	if n.Date == "" {
		n.Date = s.today()
	}
	n.Tags = cloneStrings(n.Tags)
	s.tree.News = append([]News{n}, s.tree.News...)
	s.persist(ctx)
	return cloneNews([]News{n})[0]
}

func (s *Store) DeleteNews(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.tree.News, ok = removeFirst(s.tree.News, func(n News) bool { return n.ID == id })
	if ok {
		s.persist(ctx)
	}
	return ok
}

func (s *Store) ClearAllNews(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.News = []News{}
	s.persist(ctx)
}
