package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxNews  = "vsg_news"
	idxFAQ   = "vsg_faq"
	idxRules = "vsg_rules"
)

// Meili implements Backend via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	log     *zap.Logger
	healthy atomic.Bool
	done    chan struct{}

	onRecover atomic.Pointer[func()]
}

// NewMeili creates a Meilisearch client and configures indexes. An unreachable
// server is not an error; the health loop keeps checking and Healthy reports false.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		log:    logger.Named("meili"),
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		m.log.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{uid: idxNews, filterable: []string{"author", "tags"}, searchable: []string{"title", "content", "author", "tags"}},
		{uid: idxFAQ, searchable: []string{"question", "answer"}},
		{uid: idxRules, searchable: []string{"title", "description"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.log.Debug("create index (may already exist)", zap.String("index", idx.uid), zap.Error(err))
		}

		index := m.client.Index(idx.uid)
		if len(idx.filterable) > 0 {
			filterableInterface := make([]interface{}, len(idx.filterable))
			for i, v := range idx.filterable {
				filterableInterface[i] = v
			}
			if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
				m.log.Warn("update filterable attributes", zap.String("index", idx.uid), zap.Error(err))
			}
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.log.Warn("update searchable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Meili) checkHealth() {
	_, err := m.client.Health()
	if wasHealthy := m.healthy.Swap(err == nil); err != nil || wasHealthy {
		return
	}
	m.log.Info("meilisearch recovered, reconfiguring indexes")
	m.configureIndexes()
	if fn := m.onRecover.Load(); fn != nil {
		(*fn)()
	}
}

// OnRecover registers fn to run each time Meilisearch becomes reachable after
// being down. fn runs on the health loop goroutine.
func (m *Meili) OnRecover(fn func()) {
	m.onRecover.Store(&fn)
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the three indexes (or one of them), concatenates the hits in
// news, faq, rules order and pages the merged list, the same way scan does.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	// Each index must return everything up to the end of the requested page,
	// since the page may start in any of them.
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}
	if q.Offset > 0 {
		limit += int64(q.Offset)
	}

	var queries []*meili.SearchRequest
	for _, uid := range []string{idxNews, idxFAQ, idxRules} {
		if q.FilterType != "" && q.FilterType != indexToResultType(uid) {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              uid,
			Query:                 q.Text,
			Limit:                 limit,
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		})
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	pages := make([][]Result, 0, len(resp.Results))
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		hits := make([]Result, 0, len(sr.Hits))
		for _, hit := range sr.Hits {
			hits = append(hits, hitToResult(hit, rtyp))
		}
		pages = append(pages, hits)
	}

	return mergePages(pages, q), total, nil
}

// mergePages concatenates per-index hits and cuts the requested page.
func mergePages(pages [][]Result, q Query) []Result {
	var all []Result
	for _, p := range pages {
		all = append(all, p...)
	}
	return page(all, q)
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxNews:
		return ResultNews
	case idxFAQ:
		return ResultFAQ
	case idxRules:
		return ResultRule
	default:
		return ""
	}
}

func resultTypeToIndex(t ResultType) string {
	switch t {
	case ResultNews:
		return idxNews
	case ResultFAQ:
		return idxFAQ
	case ResultRule:
		return idxRules
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, ID: decodeString(hit, "id")}

	switch rtyp {
	case ResultNews:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content"))
	case ResultFAQ:
		r.Title = firstNonBlank(decodeFormattedString(hit, "question"), decodeString(hit, "question"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "answer"), decodeString(hit, "answer"))
	case ResultRule:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexNews adds or updates news items.
func (m *Meili) IndexNews(records []NewsRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxNews).AddDocuments(records, nil)
	return err
}

// IndexFAQ adds or updates FAQ entries.
func (m *Meili) IndexFAQ(records []FAQRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxFAQ).AddDocuments(records, nil)
	return err
}

// IndexRules adds or updates rules.
func (m *Meili) IndexRules(records []RuleRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxRules).AddDocuments(records, nil)
	return err
}

// Delete removes one record from its index.
func (m *Meili) Delete(t ResultType, id string) error {
	uid := resultTypeToIndex(t)
	if uid == "" {
		return fmt.Errorf("unknown result type %q", t)
	}
	_, err := m.client.Index(uid).DeleteDocument(id, nil)
	return err
}
