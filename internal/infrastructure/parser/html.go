package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/kirillkom/docindex/internal/core/domain"
)

// HTML extracts h1-h6, p and table nodes in document order. Everything
// else (nav, script, style) is ignored.
type HTML struct{}

func (p *HTML) Parse(_ context.Context, data []byte) ([]domain.Element, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var elements []domain.Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				if text := nodeText(n); text != "" {
					elements = append(elements, domain.Element{
						Kind:  domain.ElementHeading,
						Text:  text,
						Page:  1,
						Level: int(n.Data[1] - '0'),
					})
				}
				return
			case "p":
				if text := nodeText(n); text != "" {
					elements = append(elements, domain.Element{
						Kind: domain.ElementParagraph,
						Text: text,
						Page: 1,
					})
				}
				return
			case "table":
				if text := tableText(n); text != "" {
					elements = append(elements, domain.Element{
						Kind: domain.ElementTable,
						Text: text,
						Page: 1,
					})
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return elements, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// tableText renders rows as pipe-delimited lines so tables survive as a
// single retrievable block.
func tableText(n *html.Node) string {
	var rows []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == html.ElementNode && (child.Data == "td" || child.Data == "th") {
					cells = append(cells, nodeText(child))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(rows, "\n")
}
