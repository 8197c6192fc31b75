package tokenizer

import (
	"strings"
	"unicode"
)

// CountTokens estimates the token count of text. Latin-script words are
// counted at roughly 4/3 tokens each; runes from scripts written without
// spaces (Han, Kana, Hangul) and Indic/Arabic letters are counted one token
// per rune, which is close to how BPE vocabularies split them.
func CountTokens(text string) int {
	var dense, words int
	inWord := false
	for _, r := range text {
		switch {
		case isDense(r):
			dense++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				words++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return max(words*4/3+dense, 1)
}

func isDense(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul,
		unicode.Telugu, unicode.Devanagari, unicode.Arabic)
}

// Truncate cuts text so that CountTokens(result) <= limit, on a whitespace
// boundary where possible.
func Truncate(text string, limit int) string {
	if limit <= 0 || CountTokens(text) <= limit {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if CountTokens(string(runes[:mid])) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	cut := string(runes[:lo])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
