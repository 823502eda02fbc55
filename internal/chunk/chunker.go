// Package chunk splits a frame's concatenated OCR text into
// sentence-aware, overlapping slices sized for embedding.
package chunk

import "strings"

// Chunker splits text into chunks suitable for embedding.
type Chunker struct {
	maxTokens int
	overlap   int
}

// Default returns the chunker with the documented defaults
// (256 max tokens, 32 tokens of overlap).
func Default() Chunker {
	return Chunker{maxTokens: 256, overlap: 32}
}

// New builds a chunker with custom token/overlap settings.
func New(maxTokens, overlap int) Chunker {
	return Chunker{maxTokens: maxTokens, overlap: overlap}
}

// ChunkText splits text into chunks of approximately maxTokens tokens
// each (words x 1.3), carrying overlap words from the end of the
// previous chunk into the next. Sentence terminators are `. ! ? \n`.
// Empty input yields zero chunks.
func (c Chunker) ChunkText(text string) []string {
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []string{text}
	}

	maxWords := int(float64(c.maxTokens) / 1.3)
	overlapWords := int(float64(c.overlap) / 1.3)

	var chunks []string
	var current strings.Builder
	currentWordCount := 0

	for _, sentence := range sentences {
		sentenceWords := len(strings.Fields(sentence))

		if currentWordCount+sentenceWords > maxWords && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))

			words := strings.Fields(current.String())
			if len(words) > overlapWords {
				current.Reset()
				current.WriteString(strings.Join(words[len(words)-overlapWords:], " "))
				currentWordCount = overlapWords
			} else {
				current.Reset()
				currentWordCount = 0
			}
		}

		if current.Len() > 0 {
			current.WriteString(". ")
		}
		current.WriteString(sentence)
		currentWordCount += sentenceWords
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// EstimateTokens approximates the token count of text (words x 1.3).
func (c Chunker) EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
