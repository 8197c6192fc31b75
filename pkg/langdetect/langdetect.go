// Package langdetect guesses the language of a text sample with script and
// stop-word heuristics. It is a best-effort classifier; short or mixed-script
// samples can be misclassified.
package langdetect

import (
	"strings"
	"unicode"
)

// SampleSize is the number of runes inspected.
const SampleSize = 1000

// Default is returned when no heuristic matches.
const Default = "en"

type scriptCheck struct {
	code string
	in   func(r rune) bool
}

func between(lo, hi rune) func(rune) bool {
	return func(r rune) bool { return r >= lo && r <= hi }
}

// Checked in order; the first script with any rune in the sample wins.
var scripts = []scriptCheck{
	{"te", between(0x0C00, 0x0C7F)},
	{"hi", between(0x0900, 0x097F)},
	{"ar", between(0x0600, 0x06FF)},
	{"zh", between(0x4E00, 0x9FFF)},
	{"ja", between(0x3040, 0x30FF)},
	{"ko", between(0xAC00, 0xD7AF)},
	{"ru", func(r rune) bool { return (r >= 'а' && r <= 'я') || r == 'ё' }},
}

type stopWords struct {
	code  string
	words map[string]struct{}
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Checked in order after the scripts; the first set with any word in the
// sample wins.
var latin = []stopWords{
	{"es", set("el", "la", "los", "las", "de", "que", "en", "y", "es", "son", "está", "están")},
	{"fr", set("le", "la", "les", "de", "que", "et", "est", "sont", "dans", "pour")},
	{"de", set("der", "die", "das", "und", "ist", "sind", "in", "auf", "für")},
}

// Detect returns the language code for text: one of te, hi, ar, zh, ja, ko,
// ru, es, fr, de or en.
func Detect(text string) string {
	sample := strings.ToLower(truncateRunes(text, SampleSize))
	if strings.TrimSpace(sample) == "" {
		return Default
	}

	for _, sc := range scripts {
		if strings.IndexFunc(sample, sc.in) >= 0 {
			return sc.code
		}
	}

	words := strings.FieldsFunc(sample, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	for _, sw := range latin {
		if containsAny(words, sw.words) {
			return sw.code
		}
	}

	return Default
}

func containsAny(words []string, vocab map[string]struct{}) bool {
	for _, w := range words {
		if _, ok := vocab[w]; ok {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
