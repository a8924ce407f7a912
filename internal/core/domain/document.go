package domain

import "time"

// Required tags on every ingested document. Resolution fails without them.
const (
	TagTenant  = "tenant"
	TagDataset = "dataset"
)

type ElementKind string

const (
	ElementHeading   ElementKind = "heading"
	ElementParagraph ElementKind = "paragraph"
	ElementTable     ElementKind = "table"
)

// Element is one structural unit produced by a document parser.
// Level is meaningful only for headings (1 = document root).
type Element struct {
	Kind  ElementKind `json:"kind"`
	Text  string      `json:"text"`
	Page  int         `json:"page"`
	Level int         `json:"level,omitempty"`
}

// Chunk is the atomic retrievable unit derived from a document.
// (DocID, ChunkID) is the addressing key used by both stores.
type Chunk struct {
	DocID       string            `json:"doc_id"`
	ChunkID     string            `json:"chunk_id"`
	Text        string            `json:"text"`
	IsTable     bool              `json:"is_table"`
	PageStart   int               `json:"page_start"`
	PageEnd     int               `json:"page_end"`
	SectionPath []string          `json:"section_path"`
	TokensEst   int               `json:"tokens_est"`
	SHA256      string            `json:"sha256"`
	Tags        map[string]string `json:"tags"`
}

// Key is the physical record id in the keyword store and the identity
// used for deduplication during rank fusion.
func (c Chunk) Key() string {
	return c.DocID + ":" + c.ChunkID
}

// Identity ties a document to its content hash and canonical tag set.
type Identity struct {
	DocID      string            `json:"doc_id"`
	SHA256     string            `json:"sha256"`
	Tags       map[string]string `json:"tags"`
	Filename   string            `json:"filename"`
	FileType   string            `json:"file_type"`
	FileSize   int               `json:"file_size"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// IngestMessage is the queue envelope for one ingestion job.
type IngestMessage struct {
	JobID          string            `json:"job_id"`
	SourceLocation string            `json:"source_location"`
	DocID          string            `json:"doc_id,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	SubmittedAt    time.Time         `json:"submitted_at"`
}
