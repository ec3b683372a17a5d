package domain

import "time"

// SourceTag distinguishes the two ingestion origins.
type SourceTag string

const (
	SourceLiveDOM  SourceTag = "live-dom"
	SourceBatchAPI SourceTag = "batch-api"
)

// RawItem is the transient, source-tagged payload handed to normalization.
// Only the fields matching the source tag are expected to be populated.
type RawItem struct {
	Source       SourceTag
	StructuredID string
	FallbackID   string
	PermalinkURL string
	AuthorHref   string
	Text         string
}

// CanonicalPost is the deduplicated record produced by the normalization stage.
// Immutable once persisted except for classification/rating attachments.
type CanonicalPost struct {
	ID          string
	Fingerprint string
	Text        string
	AuthorLink  string
	ScrapedAt   time.Time
}

// ClassificationResult holds the AI verdict for one post. Created once;
// absence of a record means "unclassified".
type ClassificationResult struct {
	PostID     string
	IsHistoric bool
	Confidence int
	Reason     string
	CreatedAt  time.Time
}

// RatingFactors are the four quality sub-scores, each in [1,5].
type RatingFactors struct {
	Narrative  int `json:"narrative"`
	Emotional  int `json:"emotional"`
	Historical int `json:"historical"`
	Uniqueness int `json:"uniqueness"`
}

// QualityRating attaches a [1,5] rating to a post already classified historic
// with sufficient confidence.
type QualityRating struct {
	PostID    string
	Rating    int
	Factors   RatingFactors
	CreatedAt time.Time
}

// BatchAudit summarizes one scheduled batch run with at least one success.
type BatchAudit struct {
	Job        string        `json:"job"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}
