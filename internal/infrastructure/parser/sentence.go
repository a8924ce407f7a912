package parser

import (
	"regexp"
	"strings"
)

// Segmenter splits narrative text into sentences on terminal
// punctuation followed by whitespace. Not linguistically exact, but
// deterministic, which is what chunk identity depends on.
type Segmenter struct{}

var sentenceEndRe = regexp.MustCompile(`[.!?]+\s+`)

func (Segmenter) Segment(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, match := range sentenceEndRe.FindAllStringIndex(text, -1) {
		sentence := strings.TrimSpace(text[start:match[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = match[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
