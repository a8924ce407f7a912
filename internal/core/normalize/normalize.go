// Package normalize cleans parsed document text and user queries before
// chunking and search.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kirillkom/docindex/internal/core/domain"
)

var (
	whitespaceRe      = regexp.MustCompile(`\s+`)
	hyphenWrapRe      = regexp.MustCompile(`(\w)-\s+(\w)`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([,.;:!?])`)
	missingSpaceAfter = regexp.MustCompile(`([,.;:!?])([^\s0-9])`)
	queryPunctRe      = regexp.MustCompile(`[^\w\s\-'"]`)
	numberedListRe    = regexp.MustCompile(`^(\d+)[.)]?\s+(.*)`)
	bulletListRe      = regexp.MustCompile(`^[•\-*]\s+`)
)

// Text applies the general cleanup pass: whitespace collapse,
// de-hyphenation of line wraps, punctuation spacing, and squeezing of
// runs of four or more identical characters down to two.
func Text(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	t = whitespaceRe.ReplaceAllString(t, " ")
	t = hyphenWrapRe.ReplaceAllString(t, "$1$2")
	t = spaceBeforePunct.ReplaceAllString(t, "$1")
	t = missingSpaceAfter.ReplaceAllString(t, "$1 $2")
	t = squeezeRepeats(t)
	return strings.TrimSpace(t)
}

// squeezeRepeats shortens runs of 4+ identical runes to 2, a common OCR
// artifact. Runs of 3 or fewer are left alone. Go's regexp has no
// backreferences, so this is a plain scan.
func squeezeRepeats(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		n := j - i
		if n >= 4 {
			n = 2
		}
		for k := 0; k < n; k++ {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}

// Query normalizes a user query: lowercase, punctuation stripped except
// hyphens/apostrophes/quotes, single-character non-alphabetic words dropped.
func Query(q string) string {
	n := strings.ToLower(strings.TrimSpace(q))
	if n == "" {
		return ""
	}
	n = queryPunctRe.ReplaceAllString(n, " ")
	words := strings.Fields(n)
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) > 1 || isAlpha(w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// ListsToMarkdown rewrites numbered and bulleted list lines into markdown
// form so downstream chunks keep list structure after whitespace collapse.
func ListsToMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if m := numberedListRe.FindStringSubmatch(stripped); m != nil {
			lines[i] = m[1] + ". " + m[2]
			continue
		}
		if bulletListRe.MatchString(stripped) {
			lines[i] = "- " + bulletListRe.ReplaceAllString(stripped, "")
		}
	}
	return strings.Join(lines, "\n")
}

// Elements runs the full ingestion normalization pass over parsed
// elements: repeating headers/footers (identical paragraphs appearing on
// three or more pages) are dropped, list lines are converted to markdown,
// and every element's text is cleaned. Elements whose text normalizes to
// empty are removed.
func Elements(elements []domain.Element) []domain.Element {
	repeats := repeatingParagraphs(elements, 3)

	out := make([]domain.Element, 0, len(elements))
	for _, el := range elements {
		if el.Kind == domain.ElementParagraph {
			if repeats[strings.TrimSpace(el.Text)] {
				continue
			}
			el.Text = Text(ListsToMarkdown(el.Text))
		} else {
			el.Text = Text(el.Text)
		}
		if el.Text == "" {
			continue
		}
		out = append(out, el)
	}
	return out
}

func repeatingParagraphs(elements []domain.Element, threshold int) map[string]bool {
	counts := map[string]int{}
	for _, el := range elements {
		if el.Kind != domain.ElementParagraph {
			continue
		}
		line := strings.TrimSpace(el.Text)
		if len(line) > 10 {
			counts[line]++
		}
	}
	repeats := map[string]bool{}
	for line, n := range counts {
		if n >= threshold {
			repeats[line] = true
		}
	}
	return repeats
}
