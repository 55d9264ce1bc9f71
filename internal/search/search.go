package search

import "vsg/api/internal/docstore"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultNews ResultType = "news"
	ResultFAQ  ResultType = "faq"
	ResultRule ResultType = "rule"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push records into a search index.
type Indexer interface {
	IndexNews(records []NewsRecord) error
	IndexFAQ(records []FAQRecord) error
	IndexRules(records []RuleRecord) error
	Delete(t ResultType, id string) error
}

// Backend is an external index such as Meilisearch.
type Backend interface {
	Searcher
	Indexer
}

// Source supplies the records the index mirrors.
type Source interface {
	Snapshot() docstore.Tree
}

// NewsRecord is the data we index for a news item.
type NewsRecord struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Author  string   `json:"author"`
	Tags    []string `json:"tags"`
	Date    string   `json:"date"`
}

// FAQRecord is the data we index for a FAQ entry.
type FAQRecord struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RuleRecord is the data we index for a rule.
type RuleRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
