package domain

import "time"

type JobState string

const (
	JobQueued          JobState = "queued"
	JobDownloading     JobState = "downloading"
	JobParsing         JobState = "parsing"
	JobNormalizing     JobState = "normalizing"
	JobChunking        JobState = "chunking"
	JobIndexingKeyword JobState = "indexing_keyword"
	JobIndexingVector  JobState = "indexing_vector"
	JobDone            JobState = "done"
	JobFailed          JobState = "failed"
)

var jobStateRank = map[JobState]int{
	JobQueued:          0,
	JobDownloading:     1,
	JobParsing:         2,
	JobNormalizing:     3,
	JobChunking:        4,
	JobIndexingKeyword: 5,
	JobIndexingVector:  6,
	JobDone:            7,
}

// Rank orders the forward-only pipeline states. Failed has no rank; it is
// reachable from any non-terminal state.
func (s JobState) Rank() (int, bool) {
	r, ok := jobStateRank[s]
	return r, ok
}

func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// StageEntry records one completed or in-progress pipeline stage.
type StageEntry struct {
	Name      string           `json:"name"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Counts    map[string]int64 `json:"counts,omitempty"`
}

// Job is the ephemeral status record for one ingestion attempt. It is a
// status cache with a bounded TTL, not an audit log; the indexes are the
// source of truth for what exists.
type Job struct {
	ID          string       `json:"job_id"`
	DocID       string       `json:"doc_id,omitempty"`
	State       JobState     `json:"state"`
	Stages      []StageEntry `json:"stages,omitempty"`
	Error       string       `json:"error,omitempty"`
	ErrorKind   string       `json:"error_kind,omitempty"`
	FailedStage string       `json:"failed_stage,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
