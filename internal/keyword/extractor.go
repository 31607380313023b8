// Package keyword extracts salient terms from note text. A lightweight
// script-aware tokenizer plus a stop-word list stands in for a full
// morphological analyzer; scoring combines normalized term frequency with a
// length- and capitalization-biased IDF heuristic, so equal inputs always
// produce equal keyword sets.
package keyword

import (
	"sort"
	"strings"
	"unicode"
)

const (
	minKeywordLen = 2
	maxKeywordLen = 20
)

// Keyword is one extracted term with its relevance score.
type Keyword struct {
	Name  string
	Score float64
}

// Extractor is a process-wide singleton: it holds only immutable state and
// is safe under concurrent use.
type Extractor struct {
	stopwords map[string]struct{}
}

// NewExtractor builds the extractor with the built-in stop-word set.
func NewExtractor() *Extractor {
	return &Extractor{stopwords: buildStopwords()}
}

// Extract returns up to topK keywords sorted by score descending, ties
// broken by name ascending. Deterministic per input.
func (e *Extractor) Extract(body string, topK int) []Keyword {
	if topK <= 0 || strings.TrimSpace(body) == "" {
		return nil
	}

	tokens := e.tokenize(body)
	if len(tokens) == 0 {
		return nil
	}

	counts := make(map[string]int, len(tokens))
	maxCount := 0
	for _, tok := range tokens {
		counts[tok]++
		if counts[tok] > maxCount {
			maxCount = counts[tok]
		}
	}

	scored := make([]Keyword, 0, len(counts))
	for name, count := range counts {
		tf := float64(count) / float64(maxCount)
		scored = append(scored, Keyword{Name: name, Score: tf * idf(name)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// tokenize splits on non-letter/digit runes and keeps tokens that pass the
// keyword filters: length bounds, stop-word exclusion, at least one letter
// from a permitted script (Hangul, Han, Latin or other alphabetic).
func (e *Extractor) tokenize(body string) []string {
	raw := strings.FieldsFunc(body, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if e.isValid(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func (e *Extractor) isValid(tok string) bool {
	runes := []rune(tok)
	if len(runes) < minKeywordLen || len(runes) > maxKeywordLen {
		return false
	}
	if _, stop := e.stopwords[strings.ToLower(tok)]; stop {
		return false
	}

	hasLetter := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

// idf approximates inverse document frequency without a corpus: longer
// terms are treated as more specific, capitalized terms as proper nouns.
func idf(word string) float64 {
	base := float64(len([]rune(word))) / 5.0
	if base > 2.0 {
		base = 2.0
	}
	if r := []rune(word)[0]; unicode.IsUpper(r) {
		base += 0.5
	}
	return base
}

func buildStopwords() map[string]struct{} {
	words := []string{
		// Korean particles
		"이", "가", "을", "를", "은", "는", "의", "에", "에서", "로", "으로",
		"과", "와", "도", "만", "까지", "부터", "처럼", "같이",
		// Korean auxiliary verbs and adjectives
		"하다", "되다", "있다", "없다", "이다", "아니다",
		// Korean pronouns
		"나", "너", "우리", "저희", "그", "그녀", "이것", "그것", "저것",
		// Korean adverbs
		"매우", "정말", "너무", "아주", "조금", "많이", "좀",
		// Korean common verbs
		"보다", "가다", "오다", "주다", "받다", "말하다",
		// Korean numerals
		"하나", "둘", "셋", "첫", "두", "세",
		// English function words
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "as", "is", "was", "are", "were", "be",
		"been", "being", "have", "has", "had", "do", "does", "did", "will",
		"would", "could", "should", "may", "might", "can", "this", "that",
		"these", "those", "i", "you", "he", "she", "it", "we", "they",
	}

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
