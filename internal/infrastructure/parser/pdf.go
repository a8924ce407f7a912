package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/kirillkom/docindex/internal/core/domain"
)

// PDF extracts plain text page by page. Layout is lost, so every page
// contributes paragraph elements split on blank lines.
type PDF struct{}

func (p *PDF) Parse(_ context.Context, data []byte) ([]domain.Element, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var elements []domain.Element
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", pageNum, err)
		}
		for _, block := range strings.Split(text, "\n\n") {
			block = strings.Join(strings.Fields(block), " ")
			if block == "" {
				continue
			}
			elements = append(elements, domain.Element{
				Kind: domain.ElementParagraph,
				Text: block,
				Page: pageNum,
			})
		}
	}
	return elements, nil
}
