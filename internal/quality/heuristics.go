// internal/quality/heuristics.go

// Package quality implements cheap text heuristics used as a proxy for
// response-quality validation. Generated answers cannot be compared against
// exact expected text, so each check is an independent predicate over the
// rendered response: length bounds, repetition, truncation, markup hygiene.
package quality

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	// minWordsForUniqueness gates the repetition check; very short answers
	// produce meaningless ratios.
	minWordsForUniqueness = 10
	// uniquenessThreshold is the minimum unique-word ratio before a
	// response counts as repetitive.
	uniquenessThreshold = 0.3
	// truncationMinLen is the length above which a response is expected to
	// end with terminal punctuation.
	truncationMinLen = 100
	// maxOpenTagsTolerated is the markup volume below which tag balance is
	// not checked at all; plain-text answers with a stray '<' are fine.
	maxOpenTagsTolerated = 5
)

var (
	whitespaceRunRe = regexp.MustCompile(`\s{5,}`)
	controlCharRe   = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F]")

	// danglingWords are sentence fragments a complete answer never ends on.
	danglingWords = []string{"and", "or", "but", "the", "a", "an", "to", "of"}

	placeholders = []string{"[placeholder]", "[response]", "lorem ipsum", "test response"}

	// voidElements never take a closing tag and must not count against balance.
	voidElements = map[string]bool{
		"area": true, "base": true, "br": true, "col": true, "embed": true,
		"hr": true, "img": true, "input": true, "link": true, "meta": true,
		"param": true, "source": true, "track": true, "wbr": true,
	}
)

// NonEmpty reports whether the response carries any content after trimming.
func NonEmpty(response string) bool {
	return strings.TrimSpace(response) != ""
}

// LengthWithin reports whether the response length, counted in runes so
// Arabic text is not penalized for its UTF-8 width, is inside [min, max].
// A max of zero disables the upper bound.
func LengthWithin(response string, min, max int) bool {
	n := utf8.RuneCountInString(response)
	if n < min {
		return false
	}
	if max > 0 && n > max {
		return false
	}
	return true
}

// UniquenessRatio returns unique words divided by total words, lowercased.
// Responses with fewer than two words score 1.
func UniquenessRatio(response string) float64 {
	words := strings.Fields(strings.ToLower(response))
	if len(words) < 2 {
		return 1
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

// Repetitive reports whether the response repeats itself beyond the
// uniqueness threshold. Short responses never count as repetitive.
func Repetitive(response string) bool {
	if len(strings.Fields(response)) <= minWordsForUniqueness {
		return false
	}
	return UniquenessRatio(response) <= uniquenessThreshold
}

// RepeatedNGram reports whether any n-word sequence occurs at least
// threshold times, a stronger loop detector than the uniqueness ratio.
func RepeatedNGram(response string, n, threshold int) bool {
	if n <= 0 || threshold <= 1 {
		return false
	}
	words := strings.Fields(strings.ToLower(response))
	if len(words) < n*threshold {
		return false
	}
	counts := make(map[string]int)
	for i := 0; i+n <= len(words); i++ {
		gram := strings.Join(words[i:i+n], " ")
		counts[gram]++
		if counts[gram] >= threshold {
			return true
		}
	}
	return false
}

// Truncated reports whether a long response appears cut off mid-thought:
// no terminal punctuation, a trailing ellipsis, or a dangling conjunction.
func Truncated(response string) bool {
	trimmed := strings.TrimSpace(response)
	if utf8.RuneCountInString(trimmed) <= truncationMinLen {
		return false
	}

	if strings.HasSuffix(trimmed, "...") || strings.HasSuffix(trimmed, "…") {
		return true
	}

	last, _ := utf8.DecodeLastRuneInString(trimmed)
	switch last {
	case '.', '!', '?', ':', ';', '؟', '؛', '۔':
		return false
	}

	fields := strings.Fields(strings.ToLower(trimmed))
	lastWord := fields[len(fields)-1]
	for _, w := range danglingWords {
		if lastWord == w {
			return true
		}
	}
	// Long text ending without punctuation is suspect either way.
	return true
}

// ContainsRawScript reports whether the response carries a raw script tag.
// A script tag in bot output must never reach the DOM unescaped.
func ContainsRawScript(response string) bool {
	return strings.Contains(strings.ToLower(response), "<script")
}

// BrokenHTML reports whether the response contains significantly unbalanced
// markup. It tokenizes with the HTML parser rather than regexes so void and
// self-closing elements do not skew the count, and only responses with real
// markup volume are judged.
func BrokenHTML(response string) bool {
	tokenizer := html.NewTokenizer(strings.NewReader(response))

	var open, closed int
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if open <= maxOpenTagsTolerated {
				return false
			}
			imbalance := open - closed
			if imbalance < 0 {
				imbalance = -imbalance
			}
			// Tolerate some slack for implicitly-closed elements (li, p).
			return float64(imbalance) >= float64(open)*0.5
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if !voidElements[string(name)] {
				open++
			}
		case html.EndTagToken:
			closed++
		}
	}
}

// CleanFormatting reports whether the response is free of excessive
// whitespace runs and control characters (newline, carriage return and tab
// excepted).
func CleanFormatting(response string) bool {
	if whitespaceRunRe.MatchString(response) {
		return false
	}
	return !controlCharRe.MatchString(response)
}

// ContainsPlaceholder reports whether the response leaked template filler.
func ContainsPlaceholder(response string) bool {
	lower := strings.ToLower(response)
	for _, p := range placeholders {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Bounds carries per-query length expectations from the dataset.
type Bounds struct {
	MinLength int
	MaxLength int
}

// Verdict is the aggregate outcome of all heuristics for one response.
type Verdict struct {
	Failures []string
}

// OK reports whether every heuristic passed.
func (v Verdict) OK() bool {
	return len(v.Failures) == 0
}

// Evaluate runs the full heuristic battery against a response and collects
// the names of the rules that failed.
func Evaluate(response string, bounds Bounds) Verdict {
	var v Verdict
	fail := func(rule string) { v.Failures = append(v.Failures, rule) }

	if !NonEmpty(response) {
		fail("non_empty")
		// Everything else is meaningless on an empty response.
		return v
	}
	if !LengthWithin(response, bounds.MinLength, bounds.MaxLength) {
		fail("length_bounds")
	}
	if Repetitive(response) {
		fail("repetitive")
	}
	if RepeatedNGram(response, 3, 4) {
		fail("repeated_ngram")
	}
	if Truncated(response) {
		fail("truncated")
	}
	if ContainsRawScript(response) {
		fail("raw_script_tag")
	}
	if BrokenHTML(response) {
		fail("broken_html")
	}
	if !CleanFormatting(response) {
		fail("formatting")
	}
	if ContainsPlaceholder(response) {
		fail("placeholder")
	}
	return v
}
