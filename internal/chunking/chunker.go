// Package chunking splits long memory content into overlapping,
// paragraph- or sentence-bounded pieces above a configurable size
// threshold. Each piece is stored as its own MemoryUnit by the mnemo
// service, so hybrid retrieval (C4) can surface the one passage that
// matched instead of only the whole document.
package chunking

import (
	"strings"
	"unicode"
)

// Config controls when and how content is split.
type Config struct {
	// MaxChunkSize is the maximum number of characters per chunk.
	MaxChunkSize int
	// OverlapSize is how many trailing characters of one chunk are
	// repeated at the start of the next, so a passage split across a
	// chunk boundary is still findable from either side.
	OverlapSize int
	// MinChunkSize is the content length above which chunking applies;
	// shorter content is left as a single MemoryUnit.
	MinChunkSize int
}

// DefaultConfig returns mnemocore's verified chunking defaults.
func DefaultConfig() Config {
	return Config{MaxChunkSize: 1000, OverlapSize: 100, MinChunkSize: 1500}
}

// Chunk is one piece of a larger memory's content.
type Chunk struct {
	Content  string
	Index    int
	StartPos int
	EndPos   int
}

// ShouldChunk reports whether content exceeds cfg's threshold.
func ShouldChunk(cfg Config, content string) bool {
	return len(content) > cfg.MinChunkSize
}

// Split divides content into chunks with overlap, preferring paragraph
// boundaries and falling back to sentences when content has none.
// Returns nil if content doesn't need chunking.
func Split(cfg Config, content string) []Chunk {
	if !ShouldChunk(cfg, content) {
		return nil
	}

	paragraphs := splitIntoParagraphs(content)
	if len(paragraphs) > 1 {
		return chunkByUnits(cfg, paragraphs, true)
	}
	return chunkByUnits(cfg, splitIntoSentences(content), false)
}

// chunkByUnits groups units (paragraphs or sentences) into chunks
// respecting MaxChunkSize, carrying OverlapSize characters of context
// forward into the next chunk. paragraphSep picks the separator
// re-inserted between units: a blank line for paragraphs, a space for
// sentences.
func chunkByUnits(cfg Config, units []string, paragraphSep bool) []Chunk {
	var chunks []Chunk
	var current strings.Builder
	var start int
	index := 0
	position := 0

	for i, u := range units {
		withSep := u
		switch {
		case paragraphSep && i < len(units)-1:
			withSep = u + "\n\n"
		case !paragraphSep:
			withSep = u + " "
		}

		if current.Len() > 0 && current.Len()+len(withSep) > cfg.MaxChunkSize {
			chunks = append(chunks, Chunk{
				Content:  strings.TrimSpace(current.String()),
				Index:    index,
				StartPos: start,
				EndPos:   position,
			})
			index++

			overlap := overlapSuffix(current.String(), cfg.OverlapSize)
			current.Reset()
			current.WriteString(overlap)
			start = position - len(overlap)
		}

		current.WriteString(withSep)
		position += len(withSep)
	}

	if current.Len() > 0 {
		chunks = append(chunks, Chunk{
			Content:  strings.TrimSpace(current.String()),
			Index:    index,
			StartPos: start,
			EndPos:   position,
		})
	}
	return chunks
}

func splitIntoParagraphs(content string) []string {
	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

func splitIntoSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range content {
		current.WriteRune(r)
		if isSentenceEnd(r) && (i == len(content)-1 || unicode.IsSpace(rune(content[i+1]))) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isSentenceEnd(r rune) bool { return r == '.' || r == '!' || r == '?' }

func overlapSuffix(content string, n int) string {
	if len(content) <= n {
		return content
	}
	return content[len(content)-n:]
}
