package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const snippetRunes = 160

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(html, " ")), " ")
}

// scan is a case-insensitive substring match over the current records.
func scan(q Query, news []NewsRecord, faq []FAQRecord, rules []RuleRecord) ([]Result, int) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0
	}
	var matches []Result
	if q.FilterType == "" || q.FilterType == ResultNews {
		for _, r := range news {
			if hit, field := firstMatch(needle, r.Title, r.Content, r.Author, strings.Join(r.Tags, " ")); hit {
				matches = append(matches, Result{Type: ResultNews, ID: r.ID, Title: r.Title, Snippet: excerpt(field, needle)})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultFAQ {
		for _, r := range faq {
			if hit, _ := firstMatch(needle, r.Question, r.Answer); hit {
				matches = append(matches, Result{Type: ResultFAQ, ID: r.ID, Title: r.Question, Snippet: excerpt(r.Answer, needle)})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultRule {
		for _, r := range rules {
			if hit, _ := firstMatch(needle, r.Title, r.Description); hit {
				matches = append(matches, Result{Type: ResultRule, ID: r.ID, Title: r.Title, Snippet: excerpt(r.Description, needle)})
			}
		}
	}
	return page(matches, q), len(matches)
}

func firstMatch(needle string, fields ...string) (bool, string) {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true, f
		}
	}
	return false, ""
}

// excerpt returns up to snippetRunes runes of text starting a little before the match.
func excerpt(text, needle string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	start := 0
	if i := strings.Index(strings.ToLower(text), needle); i > 0 {
		start = utf8.RuneCountInString(strings.ToLower(text)[:i]) - 20
		if start < 0 {
			start = 0
		}
	}
	end := start + snippetRunes
	if end > len(runes) {
		end = len(runes)
		start = end - snippetRunes
	}
	return strings.TrimSpace(string(runes[start:end]))
}

func page(results []Result, q Query) []Result {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
