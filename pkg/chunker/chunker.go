// Package chunker splits long text into pieces that fit a token budget,
// preferring paragraph, then line, then sentence, then word boundaries.
package chunker

import (
	"strings"

	"github.com/nikhilbhutani/docchat/pkg/tokenizer"
)

type Options struct {
	MaxTokens int // per-chunk budget as estimated by tokenizer.CountTokens
	Overlap   int // trailing runes of the previous chunk repeated at the start of the next
}

func DefaultOptions() Options {
	return Options{MaxTokens: 3000, Overlap: 200}
}

type Chunk struct {
	Index   int
	Content string
	Tokens  int
}

var separators = []string{"\n\n", "\n", ". ", "。", " "}

// Split returns text as ordered chunks. Text that already fits is returned as
// a single chunk; whitespace-only text yields no chunks.
func Split(text string, opts Options) []Chunk {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	parts := splitRecursive(text, separators, opts.MaxTokens)

	chunks := make([]Chunk, 0, len(parts))
	var prev string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		content := part
		if prev != "" && opts.Overlap > 0 {
			content = tail(prev, opts.Overlap) + " " + part
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: content,
			Tokens:  tokenizer.CountTokens(content),
		})
		prev = part
	}
	return chunks
}

func splitRecursive(text string, seps []string, budget int) []string {
	if tokenizer.CountTokens(text) <= budget {
		return []string{text}
	}
	if len(seps) == 0 {
		return splitHard(text, budget)
	}

	sep := seps[0]
	pieces := strings.Split(text, sep)
	if len(pieces) == 1 {
		return splitRecursive(text, seps[1:], budget)
	}

	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			out = append(out, splitRecursive(current.String(), seps[1:], budget)...)
			current.Reset()
		}
	}
	for _, p := range pieces {
		if current.Len() > 0 && tokenizer.CountTokens(current.String()+sep+p) > budget {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(p)
	}
	flush()
	return out
}

// splitHard cuts text without regard to boundaries.
func splitHard(text string, budget int) []string {
	var out []string
	text = strings.TrimSpace(text)
	for text != "" {
		piece := tokenizer.Truncate(text, budget)
		if piece == "" {
			r := []rune(text)
			n := min(len(r), budget)
			piece = string(r[:n])
		}
		out = append(out, piece)
		text = strings.TrimSpace(strings.TrimPrefix(text, piece))
	}
	return out
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
