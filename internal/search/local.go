package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"rca-copilot/internal/models"
)

// Local ranks in-memory records by keyword overlap with the query. It stands
// in for the hosted index when no search endpoint is configured, so local
// runs work end to end without Azure credentials.
type Local struct {
	corpora map[string][]indexedDoc
}

type indexedDoc struct {
	doc  models.Document
	text string
}

// NewLocal indexes the given corpora, keyed by index name.
func NewLocal(corpora map[string][]models.Document) *Local {
	indexed := make(map[string][]indexedDoc, len(corpora))
	for name, docs := range corpora {
		entries := make([]indexedDoc, 0, len(docs))
		for _, doc := range docs {
			entries = append(entries, indexedDoc{doc: doc, text: flatten(doc)})
		}
		indexed[name] = entries
	}
	return &Local{corpora: indexed}
}

// Search scores every record in the index against the query terms and
// returns the topK best matches. Records with no matching term are omitted,
// so an off-topic query legitimately yields zero results.
func (l *Local) Search(_ context.Context, index, query string, topK int) ([]models.Document, error) {
	entries, ok := l.corpora[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}

	terms := tokenize(query)
	type scored struct {
		doc   models.Document
		score float64
	}
	ranked := make([]scored, 0, len(entries))
	for _, entry := range entries {
		s := score(entry.text, terms)
		if s > 0 {
			ranked = append(ranked, scored{doc: entry.doc, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]models.Document, 0, len(ranked))
	for _, r := range ranked {
		doc := make(models.Document, len(r.doc)+1)
		for k, v := range r.doc {
			doc[k] = v
		}
		doc["search_score"] = r.score
		out = append(out, doc)
	}
	return out, nil
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "for": {},
	"in": {}, "on": {}, "to": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"show": {}, "me": {}, "all": {}, "any": {}, "what": {}, "why": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// score counts query term occurrences in the flattened record, weighting
// whole-word matches above substring hits.
func score(text string, terms []string) float64 {
	var total float64
	for _, term := range terms {
		n := strings.Count(text, term)
		if n == 0 {
			continue
		}
		total += float64(n)
		if containsWord(text, term) {
			total += 2
		}
	}
	return total
}

func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		leftOK := start == 0 || isBoundary(rune(text[start-1]))
		rightOK := end == len(text) || isBoundary(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func flatten(doc models.Document) string {
	parts := make([]string, 0, len(doc))
	for _, v := range doc {
		if v == nil {
			continue
		}
		parts = append(parts, strings.ToLower(fmt.Sprint(v)))
	}
	return strings.Join(parts, " ")
}

var _ Service = (*Local)(nil)
