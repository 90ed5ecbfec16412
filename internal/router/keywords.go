package router

import (
	"strings"
	"unicode"

	"github.com/opsdesk/deskmate/internal/department"
)

// lexicon is one department's keyword list, pre-tokenized for matching.
// Single-token keywords score as exact word-boundary matches; multi-token
// keywords score as lower-weight n-gram matches.
type lexicon struct {
	dept   department.Department
	words  []string
	ngrams [][]string
}

type deptScore struct {
	dept  department.Department
	score float64
}

func newLexicon(dept department.Department, keywords []string) lexicon {
	lex := lexicon{dept: dept}
	for _, kw := range keywords {
		tokens := tokenize(kw)
		switch len(tokens) {
		case 0:
		case 1:
			lex.words = append(lex.words, tokens[0])
		default:
			lex.ngrams = append(lex.ngrams, tokens)
		}
	}
	return lex
}

// keywordScores scores every department's lexicon against the query.
// Results are in department enumeration order, one entry per department.
func (r *Router) keywordScores(query string) []deptScore {
	tokens := tokenize(query)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	scores := make([]deptScore, 0, len(r.lexicons))
	for _, lex := range r.lexicons {
		var score float64
		for _, w := range lex.words {
			if _, ok := tokenSet[w]; ok {
				score += exactMatchScore
			}
		}
		for _, ngram := range lex.ngrams {
			if containsNgram(tokens, ngram) {
				score += ngramMatchScore
			}
		}
		scores = append(scores, deptScore{dept: lex.dept, score: score})
	}
	return scores
}

// tokenize lowercases text and splits it into alphanumeric words, so that
// punctuation never blocks a word-boundary match.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsNgram reports whether ngram occurs as a consecutive token run.
func containsNgram(tokens, ngram []string) bool {
	if len(ngram) > len(tokens) {
		return false
	}
	for i := 0; i+len(ngram) <= len(tokens); i++ {
		match := true
		for j, w := range ngram {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
