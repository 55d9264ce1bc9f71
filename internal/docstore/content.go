package docstore

import "context"

func (s *Store) GetAllRules() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRules(s.tree.Rules)
}

// AddRule numbers the rule past the largest integer id. Token ids do not count.
func (s *Store) AddRule(ctx context.Context, r Rule) Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := nextID(s.tree.Rules, func(r Rule) int64 {
		n, _ := r.ID.Int()
		return n
	})
	r.ID = IntRuleID(next)
	s.tree.Rules = append(s.tree.Rules, r)
	s.persist(ctx)
	return r
}

// SaveRules replaces the whole rule list.
func (s *Store) SaveRules(ctx context.Context, rules []Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Rules = cloneRules(rules)
	s.persist(ctx)
}

func (s *Store) DeleteRule(ctx context.Context, id RuleID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.tree.Rules, ok = removeFirst(s.tree.Rules, func(r Rule) bool { return r.ID.Matches(id) })
	if ok {
		s.persist(ctx)
	}
	return ok
}

func (s *Store) GetAllTeams() []Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTeams(s.tree.Teams)
}

func (s *Store) AddTeam(ctx context.Context, t Team) Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = nextID(s.tree.Teams, func(t Team) int64 { return t.ID })
	t.Members = cloneStrings(t.Members)
	s.tree.Teams = append(s.tree.Teams, t)
	s.persist(ctx)
	return cloneTeams([]Team{t})[0]
}

func (s *Store) DeleteTeam(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.tree.Teams, ok = removeFirst(s.tree.Teams, func(t Team) bool { return t.ID == id })
	if ok {
		s.persist(ctx)
	}
	return ok
}

func (s *Store) GetAllFaq() []FAQEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFAQ(s.tree.FAQ)
}

func (s *Store) AddFaq(ctx context.Context, f FAQEntry) FAQEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = nextID(s.tree.FAQ, func(f FAQEntry) int64 { return f.ID })
	s.tree.FAQ = append(s.tree.FAQ, cloneFAQ([]FAQEntry{f})[0])
	s.persist(ctx)
	return f
}

func (s *Store) DeleteFaq(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.tree.FAQ, ok = removeFirst(s.tree.FAQ, func(f FAQEntry) bool { return f.ID == id })
	if ok {
		s.persist(ctx)
	}
	return ok
}
