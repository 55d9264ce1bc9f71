package search

import (
	"strconv"

	"vsg/api/internal/docstore"
)

func newsRecord(n docstore.News) NewsRecord {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NewsRecord{
		ID:      strconv.FormatInt(n.ID, 10),
		Title:   n.Title,
		Content: stripTags(n.Content),
		Author:  n.Author,
		Tags:    tags,
		Date:    n.Date,
	}
}

func faqRecord(f docstore.FAQEntry) FAQRecord {
	return FAQRecord{ID: strconv.FormatInt(f.ID, 10), Question: f.Question, Answer: stripTags(f.Answer)}
}

func ruleRecord(r docstore.Rule) RuleRecord {
	return RuleRecord{ID: r.ID.String(), Title: r.Title, Description: r.Description}
}

// records converts a whole tree into index records. Elements kept verbatim
// because they are not objects are not searchable.
func records(tree docstore.Tree) ([]NewsRecord, []FAQRecord, []RuleRecord) {
	news := make([]NewsRecord, 0, len(tree.News))
	for _, n := range tree.News {
		if n.Raw != nil {
			continue
		}
		news = append(news, newsRecord(n))
	}
	faq := make([]FAQRecord, 0, len(tree.FAQ))
	for _, f := range tree.FAQ {
		if f.Raw != nil {
			continue
		}
		faq = append(faq, faqRecord(f))
	}
	rules := make([]RuleRecord, 0, len(tree.Rules))
	for _, r := range tree.Rules {
		if r.Raw != nil {
			continue
		}
		rules = append(rules, ruleRecord(r))
	}
	return news, faq, rules
}

// liveIDs lists the ids present in tree, by result type.
func liveIDs(tree docstore.Tree) map[ResultType]map[string]struct{} {
	news, faq, rules := records(tree)
	ids := map[ResultType]map[string]struct{}{
		ResultNews: {},
		ResultFAQ:  {},
		ResultRule: {},
	}
	for _, r := range news {
		ids[ResultNews][r.ID] = struct{}{}
	}
	for _, r := range faq {
		ids[ResultFAQ][r.ID] = struct{}{}
	}
	for _, r := range rules {
		ids[ResultRule][r.ID] = struct{}{}
	}
	return ids
}
