package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docindex/internal/core/domain"
)

// XLSX turns each sheet into a heading plus one table element, with
// rows rendered as pipe-delimited lines. Sheets map to pages.
type XLSX struct{}

func (p *XLSX) Parse(_ context.Context, data []byte) ([]domain.Element, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	var elements []domain.Element
	for sheetIdx, sheet := range book.GetSheetList() {
		page := sheetIdx + 1
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
			line := strings.Join(row, " | ")
			if strings.Trim(line, " |") == "" {
				continue
			}
			lines = append(lines, "| "+line+" |")
		}
		if len(lines) == 0 {
			continue
		}

		elements = append(elements,
			domain.Element{Kind: domain.ElementHeading, Text: sheet, Page: page, Level: 1},
			domain.Element{Kind: domain.ElementTable, Text: strings.Join(lines, "\n"), Page: page},
		)
	}
	return elements, nil
}
