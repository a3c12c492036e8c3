package partitioner

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// Segment is one partitioned span of text. Text is always the exact
// substring text[StartOffset:EndOffset] of the partitioned input.
type Segment struct {
	Text        string
	TokenCount  int
	StartOffset int
	EndOffset   int
}

// CountTokens counts whitespace-delimited tokens.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

// token is a whitespace-delimited word and what separates it from the next one.
type token struct {
	start, end int
	lineEnd    bool
	paraEnd    bool
}

// unit is a run of tokens [from, to) that is packed as a whole: a line, or a
// window of an overlong line.
type unit struct {
	from, to int
	paraEnd  bool
}

// Partition splits text into chunks of at most maxTokensPerChunk tokens.
//
// Text is split into paragraphs on blank lines and paragraphs into lines.
// Lines longer than maxTokensPerLine are cut into windows of that size. The
// resulting units are packed greedily. A chunk that ends at a paragraph
// boundary is closed unless the whole next paragraph fits. Each chunk after
// the first begins with up to overlapTokens tokens from the end of the
// previous chunk; the overlap shrinks when it would push a chunk over budget.
func Partition(text string, maxTokensPerChunk, maxTokensPerLine, overlapTokens int) ([]Segment, error) {
	if err := validate(maxTokensPerChunk, maxTokensPerLine, overlapTokens); err != nil {
		return nil, err
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	units := split(tokens, maxTokensPerLine)

	var segments []Segment
	prevFrom, prevTo := -1, -1
	for u := 0; u < len(units); {
		from := units[u].from
		if prevTo >= 0 {
			carry := min(overlapTokens, prevTo-prevFrom, maxTokensPerChunk-(units[u].to-units[u].from))
			from = units[u].from - max(carry, 0)
		}

		to := units[u].to
		u++
		for u < len(units) {
			next := units[u].to - from
			if next > maxTokensPerChunk {
				break
			}
			if units[u-1].paraEnd && paragraphEnd(units, u)-from > maxTokensPerChunk {
				break
			}
			to = units[u].to
			u++
		}

		start, end := tokens[from].start, tokens[to-1].end
		segments = append(segments, Segment{
			Text:        text[start:end],
			TokenCount:  to - from,
			StartOffset: start,
			EndOffset:   end,
		})
		prevFrom, prevTo = from, to
	}
	return segments, nil
}

// paragraphEnd returns the token index ending the paragraph that starts at units[u].
func paragraphEnd(units []unit, u int) int {
	for ; u < len(units); u++ {
		if units[u].paraEnd {
			return units[u].to
		}
	}
	return units[len(units)-1].to
}

// tokenize finds tokens and classifies the whitespace after each one.
// One newline ends a line, two or more end a paragraph.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	newlines := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{start: start, end: i})
				start = -1
				newlines = 0
			}
			if r == '\n' {
				newlines++
				if n := len(tokens); n > 0 {
					tokens[n-1].lineEnd = true
					tokens[n-1].paraEnd = tokens[n-1].paraEnd || newlines >= 2
				}
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	if n := len(tokens); n > 0 {
		tokens[n-1].lineEnd = true
		tokens[n-1].paraEnd = true
	}
	return tokens
}

// split groups tokens into lines and cuts lines into windows of maxTokensPerLine.
func split(tokens []token, maxTokensPerLine int) []unit {
	var units []unit
	from := 0
	for i, t := range tokens {
		if !t.lineEnd && i+1-from < maxTokensPerLine {
			continue
		}
		units = append(units, unit{from: from, to: i + 1, paraEnd: t.paraEnd})
		from = i + 1
	}
	return units
}

func validate(maxTokensPerChunk, maxTokensPerLine, overlapTokens int) error {
	return domain.PartitionSettings{
		MaxTokensPerChunk: maxTokensPerChunk,
		MaxTokensPerLine:  maxTokensPerLine,
		OverlapTokens:     overlapTokens,
	}.Validate()
}
