// Package history keeps a local SQLite journal of assessment results.
//
// Only the outcome of each assessment is stored: its kind, the headline
// label and the narrative. Captured frames and transcripts are never written.
package history

import "time"

// Kind identifies which assessment produced a result.
type Kind string

const (
	KindSymptoms   Kind = "symptoms"
	KindText       Kind = "text"
	KindEmotion    Kind = "emotion"
	KindMultimodal Kind = "multimodal"
)

// Assessment is one recorded prediction result.
type Assessment struct {
	ID        string
	Kind      Kind
	Label     string
	Summary   string
	CreatedAt time.Time
}
