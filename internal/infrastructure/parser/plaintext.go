package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docindex/internal/core/domain"
)

// Plaintext handles text/plain and text/markdown. Blank-line separated
// blocks become paragraphs, "#" prefixes become headings, and blocks of
// pipe-delimited lines become tables.
type Plaintext struct{}

func (p *Plaintext) Parse(_ context.Context, data []byte) ([]domain.Element, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("content is not valid UTF-8")
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(text, "\n\n")

	elements := make([]domain.Element, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		if level, title, ok := headingLine(block); ok {
			elements = append(elements, domain.Element{
				Kind:  domain.ElementHeading,
				Text:  title,
				Page:  1,
				Level: level,
			})
			continue
		}
		if isPipeTable(block) {
			elements = append(elements, domain.Element{
				Kind: domain.ElementTable,
				Text: block,
				Page: 1,
			})
			continue
		}
		elements = append(elements, domain.Element{
			Kind: domain.ElementParagraph,
			Text: strings.Join(strings.Fields(block), " "),
			Page: 1,
		})
	}
	return elements, nil
}

func headingLine(block string) (level int, title string, ok bool) {
	if strings.ContainsRune(block, '\n') || !strings.HasPrefix(block, "#") {
		return 0, "", false
	}
	for level < len(block) && block[level] == '#' {
		level++
	}
	if level > 6 {
		return 0, "", false
	}
	title = strings.TrimSpace(block[level:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

func isPipeTable(block string) bool {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return false
	}
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "|") {
			return false
		}
	}
	return true
}
