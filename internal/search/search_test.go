package search

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsg/api/internal/docstore"
	"vsg/api/internal/slot"
)

type fakeBackend struct {
	mu      sync.Mutex
	healthy bool
	results []Result
	err     error
	news    []NewsRecord
	faq     []FAQRecord
	rules   []RuleRecord
	deleted []string
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) Search(Query) ([]Result, int, error) {
	return f.results, len(f.results), f.err
}

func (f *fakeBackend) IndexNews(r []NewsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.news = append(f.news, r...)
	return nil
}

func (f *fakeBackend) IndexFAQ(r []FAQRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faq = append(f.faq, r...)
	return nil
}

func (f *fakeBackend) IndexRules(r []RuleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r...)
	return nil
}

func (f *fakeBackend) Delete(t ResultType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, string(t)+":"+id)
	return nil
}

// recoveringBackend lets a test fire the backend's recovery hook.
type recoveringBackend struct {
	*fakeBackend
	recovered func()
}

func (r *recoveringBackend) OnRecover(fn func()) { r.recovered = fn }

type countingObserver map[string]int

func (c countingObserver) ObserveSearch(backend string) { c[backend]++ }

func newStore(t *testing.T) *docstore.Store {
	t.Helper()
	now := time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)
	return docstore.Open(context.Background(), slot.NewMemory(), docstore.WithClock(func() time.Time { return now }))
}

func TestScanFindsSeedContent(t *testing.T) {
	svc := NewService(nil, newStore(t), nil)
	obs := countingObserver{}
	svc.SetObserver(obs)

	resp := svc.Search(Query{Text: "ОДНА ЖИЗНЬ"})
	assert.Equal(t, BackendScan, resp.Backend)
	assert.Equal(t, 1, obs[BackendScan])

	var kinds []ResultType
	for _, r := range resp.Results {
		kinds = append(kinds, r.Type)
	}
	assert.Contains(t, kinds, ResultRule)
	assert.Contains(t, kinds, ResultFAQ)

	resp = svc.Search(Query{Text: "roblox", FilterType: ResultNews})
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "1", resp.Results[0].ID)
	assert.NotContains(t, resp.Results[0].Snippet, "<")
	assert.LessOrEqual(t, len([]rune(resp.Results[0].Snippet)), snippetRunes)
}

func TestScanPagingAndEmptyQuery(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		st.AddFaq(ctx, docstore.FAQEntry{Question: "Сервер?", Answer: "Да"})
	}
	svc := NewService(nil, st, nil)

	resp := svc.Search(Query{Text: "сервер?", FilterType: ResultFAQ, Limit: 2, Offset: 1})
	assert.Equal(t, 5, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "4", resp.Results[0].ID)

	resp = svc.Search(Query{Text: "  "})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestIndexHitsForDeletedRecordsAreDropped(t *testing.T) {
	st := newStore(t)
	backend := &fakeBackend{healthy: true, results: []Result{
		{Type: ResultNews, ID: "1", Title: "kept"},
		{Type: ResultNews, ID: "9", Title: "gone"},
		{Type: ResultRule, ID: "2", Title: "kept rule"},
	}}
	svc := NewService(backend, st, nil)

	resp := svc.Search(Query{Text: "x"})
	assert.Equal(t, BackendMeili, resp.Backend)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "kept", resp.Results[0].Title)
}

func TestIndexErrorFallsBackToScan(t *testing.T) {
	backend := &fakeBackend{healthy: true, err: errors.New("timeout")}
	svc := NewService(backend, newStore(t), nil)

	resp := svc.Search(Query{Text: "альфа"})
	assert.Equal(t, BackendScan, resp.Backend)
}

func TestIndexUpdates(t *testing.T) {
	st := newStore(t)
	backend := &fakeBackend{healthy: true}
	svc := NewService(backend, st, nil)

	svc.IndexNews(docstore.News{ID: 5, Title: "<b>Ивент</b>", Content: "<p>Сбор в 20:00</p>"})
	svc.IndexFAQ(docstore.FAQEntry{ID: 3, Question: "q"})
	svc.IndexRule(docstore.Rule{ID: docstore.TokenRuleID("rule_17"), Title: "r"})
	svc.DeleteNews(5)
	svc.DeleteRule(docstore.TokenRuleID("rule_17"))
	svc.Wait()

	require.Len(t, backend.news, 1)
	assert.Equal(t, "5", backend.news[0].ID)
	assert.Equal(t, "Сбор в 20:00", backend.news[0].Content)
	assert.Equal(t, []string{}, backend.news[0].Tags)
	assert.Equal(t, "rule_17", backend.rules[0].ID)
	assert.ElementsMatch(t, []string{"news:5", "rule:rule_17"}, backend.deleted)

	svc.ReindexAll()
	assert.Len(t, backend.news, 2)
	assert.Len(t, backend.faq, 3)
	assert.Len(t, backend.rules, 3)
}

func TestUnhealthyBackendIsSkipped(t *testing.T) {
	backend := &fakeBackend{healthy: false}
	svc := NewService(backend, newStore(t), nil)

	svc.IndexNews(docstore.News{ID: 1})
	svc.ReindexAll()
	svc.Wait()
	assert.Empty(t, backend.news)
	assert.Equal(t, BackendScan, svc.Search(Query{Text: "vsg"}).Backend)
}

func TestRecoveryReindexesUpdatesMissedWhileDown(t *testing.T) {
	st := newStore(t)
	backend := &recoveringBackend{fakeBackend: &fakeBackend{}}
	svc := NewService(backend, st, nil)
	require.NotNil(t, backend.recovered)

	n := st.AddNews(context.Background(), docstore.News{Title: "Сбор отряда", Content: "в 20:00"})
	svc.IndexNews(n)
	svc.Wait()
	assert.Empty(t, backend.news)

	backend.healthy = true
	backend.recovered()

	ids := make([]string, 0, len(backend.news))
	for _, r := range backend.news {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, strconv.FormatInt(n.ID, 10))
	assert.Len(t, backend.faq, len(st.GetAllFaq()))
	assert.Len(t, backend.rules, len(st.GetAllRules()))
}

func TestStripTags(t *testing.T) {
	got := stripTags("<h3>Добро</h3>\n  <p>пожаловать <strong>все</strong></p>")
	assert.Equal(t, "Добро пожаловать все", got)
	assert.False(t, strings.Contains(got, "  "))
}
