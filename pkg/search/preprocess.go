package search

import (
	"strings"
	"unicode"
)

// stopWords are dropped from queries before matching.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "into": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "this": true,
	"to": true, "was": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "will": true, "with": true,
}

// synonyms expands query terms additively; the original terms always remain.
var synonyms = map[string][]string{
	"ai":     {"artificial", "intelligence"},
	"ml":     {"machine", "learning"},
	"db":     {"database"},
	"config": {"configuration"},
	"docs":   {"documentation"},
	"auth":   {"authentication"},
	"repo":   {"repository"},
	"k8s":    {"kubernetes"},
	"memory": {"recall"},
	"error":  {"failure"},
	"fast":   {"quick", "performance"},
	"bug":    {"defect", "issue"},
}

// preprocessQuery lowercases, strips punctuation, removes stop words, and
// optionally expands synonyms. Expansion never removes original terms.
func preprocessQuery(query string, expandSynonyms bool) []string {
	var terms []string
	seen := make(map[string]bool)

	add := func(term string) {
		if term == "" || stopWords[term] || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, term)
	}

	for _, raw := range strings.Fields(strings.ToLower(query)) {
		term := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		add(term)
	}

	if expandSynonyms {
		base := make([]string, len(terms))
		copy(base, terms)
		for _, term := range base {
			for _, syn := range synonyms[term] {
				add(syn)
			}
		}
	}

	return terms
}

// ftsMatchExpr builds an FTS5 OR-match over the terms. Terms are quoted to
// keep user input from being parsed as match syntax.
func ftsMatchExpr(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, ``) + `"`
	}
	return strings.Join(quoted, " OR ")
}
