// Package chunking turns a document's structural elements into an ordered
// sequence of chunk records with deterministic identities, sentence-level
// overlap, and section provenance.
package chunking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/ports"
)

type Config struct {
	// TargetTokens closes a narrative window once its estimated token
	// count reaches this value. Soft bound is roughly 0.8x..1.2x.
	TargetTokens int
	// OverlapFraction of the closing window's tokens carried into the
	// next window, counted in whole sentences from the tail.
	OverlapFraction float64
}

type Chunker struct {
	cfg       Config
	segmenter ports.SentenceSegmenter
}

func New(cfg Config, segmenter ports.SentenceSegmenter) *Chunker {
	if cfg.TargetTokens <= 0 {
		cfg.TargetTokens = 1000
	}
	if cfg.OverlapFraction <= 0 || cfg.OverlapFraction >= 1 {
		cfg.OverlapFraction = 0.15
	}
	return &Chunker{cfg: cfg, segmenter: segmenter}
}

// EstimateTokens approximates token count from whitespace-delimited words.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(strings.Fields(text))) * 1.3))
}

type sentence struct {
	text   string
	page   int
	tokens int
}

type builder struct {
	chunker *Chunker
	docID   string
	tags    map[string]string
	stack   headingStack
	chunks  []domain.Chunk
	window  []sentence
	// seed counts sentences at the head of window carried over from the
	// previous chunk's tail; a window never closes on seed content alone.
	seed int
	seq  int
}

// Chunk emits chunks in document order. Table elements become single-element
// chunks and flush any open narrative window first; narrative elements are
// segmented into sentences and windowed with tail overlap. chunk_id is a
// zero-padded sequence shared across narrative and table chunks.
func (c *Chunker) Chunk(docID string, tags map[string]string, elements []domain.Element) []domain.Chunk {
	b := &builder{chunker: c, docID: docID, tags: tags}

	for _, el := range elements {
		switch el.Kind {
		case domain.ElementHeading:
			b.flush()
			b.stack.push(el.Level, el.Text)
		case domain.ElementTable:
			// A table never splits or joins a narrative chunk.
			b.flush()
			b.emitTable(el)
		default:
			for _, text := range c.segmenter.Segment(el.Text) {
				b.add(sentence{text: text, page: el.Page, tokens: EstimateTokens(text)})
			}
		}
	}
	b.flush()

	if b.chunks == nil {
		return []domain.Chunk{}
	}
	return b.chunks
}

func (b *builder) add(s sentence) {
	b.window = append(b.window, s)
	if len(b.window) > b.seed && b.windowTokens() >= b.chunker.cfg.TargetTokens {
		closing := b.window
		b.emitNarrative(closing)
		carry := b.chunker.overlapTail(closing)
		b.window = append([]sentence(nil), carry...)
		b.seed = len(b.window)
	}
}

// flush closes a partial window at a structural boundary or end of
// document. A window holding only carried-over seed sentences is dropped:
// its content is already part of the previous chunk.
func (b *builder) flush() {
	if len(b.window) > b.seed {
		b.emitNarrative(b.window)
	}
	b.window, b.seed = nil, 0
}

func (b *builder) windowTokens() int {
	total := 0
	for _, s := range b.window {
		total += s.tokens
	}
	return total
}

func (b *builder) emitNarrative(sents []sentence) {
	parts := make([]string, len(sents))
	pageStart, pageEnd := sents[0].page, sents[0].page
	total := 0
	for i, s := range sents {
		parts[i] = s.text
		total += s.tokens
		if s.page < pageStart {
			pageStart = s.page
		}
		if s.page > pageEnd {
			pageEnd = s.page
		}
	}
	b.emit(domain.Chunk{
		Text:        strings.Join(parts, " "),
		PageStart:   pageStart,
		PageEnd:     pageEnd,
		SectionPath: b.stack.path(),
		TokensEst:   total,
	})
}

func (b *builder) emitTable(el domain.Element) {
	b.emit(domain.Chunk{
		Text:        el.Text,
		IsTable:     true,
		PageStart:   el.Page,
		PageEnd:     el.Page,
		SectionPath: b.stack.path(),
		TokensEst:   EstimateTokens(el.Text),
	})
}

func (b *builder) emit(chunk domain.Chunk) {
	chunk.DocID = b.docID
	chunk.ChunkID = fmt.Sprintf("%04d", b.seq)
	b.seq++
	sum := sha256.Sum256([]byte(chunk.Text))
	chunk.SHA256 = hex.EncodeToString(sum[:])
	chunk.Tags = b.tags
	b.chunks = append(b.chunks, chunk)
}

// overlapTail returns the trailing sentences whose estimated tokens add up
// to about the configured fraction of the closing window. Counted in whole
// sentences so no sentence is ever split across chunks; at least one
// sentence of the closed window stays exclusive to it.
func (c *Chunker) overlapTail(window []sentence) []sentence {
	total := 0
	for _, s := range window {
		total += s.tokens
	}
	budget := int(math.Ceil(float64(total) * c.cfg.OverlapFraction))

	carried := 0
	i := len(window)
	for i > 1 && carried < budget {
		i--
		carried += window[i].tokens
	}
	return window[i:]
}

// headingStack keeps the most recent heading seen at or above each nesting
// level. A chunk's section path is a snapshot at the moment it closes.
type headingStack struct {
	entries []headingEntry
}

type headingEntry struct {
	level int
	text  string
}

func (h *headingStack) push(level int, text string) {
	if level <= 0 {
		level = 1
	}
	for len(h.entries) > 0 && h.entries[len(h.entries)-1].level >= level {
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, headingEntry{level: level, text: text})
}

func (h *headingStack) path() []string {
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.text
	}
	return out
}
