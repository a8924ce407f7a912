// Package parser turns raw source bytes into ordered structural
// elements. One sub-parser per format, dispatched on content type.
package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/docindex/internal/core/domain"
)

type formatParser interface {
	Parse(ctx context.Context, data []byte) ([]domain.Element, error)
}

type Composite struct {
	byType map[string]formatParser
}

func NewComposite() *Composite {
	plain := &Plaintext{}
	return &Composite{
		byType: map[string]formatParser{
			"application/pdf": &PDF{},
			"text/html":       &HTML{},
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": &XLSX{},
			"text/plain":    plain,
			"text/markdown": plain,
		},
	}
}

func (c *Composite) Parse(ctx context.Context, data []byte, contentType string) ([]domain.Element, error) {
	// Strip parameters like "; charset=utf-8".
	mediaType := strings.TrimSpace(strings.ToLower(strings.SplitN(contentType, ";", 2)[0]))

	sub, ok := c.byType[mediaType]
	if !ok {
		return nil, domain.WrapError(domain.ErrParse, "parse document",
			fmt.Errorf("unsupported content type %q", contentType))
	}
	elements, err := sub.Parse(ctx, data)
	if err != nil {
		if domain.IsKind(err, domain.ErrParse) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrParse, "parse document", err)
	}
	return elements, nil
}
