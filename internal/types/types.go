package types

import (
	"image"
	"time"

	"github.com/andresmejia3/rollcall/internal/quality"
)

// UnknownIdentity is the label used for faces that did not match anyone.
const UnknownIdentity = "unknown"

// FaceObservation is a single detected face in a single frame. It is discarded once the frame is processed.
type FaceObservation struct {
	Box       image.Rectangle
	Crop      *image.Gray // grayscale crop of Box, before normalization
	Quality   quality.Score
	Timestamp time.Time
}

// Outcome tells how a classification ended.
type Outcome int

const (
	// OutcomeMatch means the distance was below the threshold and the label is mapped.
	OutcomeMatch Outcome = iota
	// OutcomeNoMatch means the distance was at or above the threshold ("unknown").
	OutcomeNoMatch
	// OutcomeFailed means the classifier errored or returned an unmapped label.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeNoMatch:
		return "no-match"
	case OutcomeFailed:
		return "failed"
	}
	return "invalid"
}

// ClassificationResult is what the pipeline makes of one classifier call.
type ClassificationResult struct {
	Outcome  Outcome
	Label    int
	Identity string // student ID for OutcomeMatch, UnknownIdentity for OutcomeNoMatch
	Distance float64
	Err      error
}

// FaceStatus is the operator-visible state of a face in the current frame.
type FaceStatus int

const (
	StatusRejected FaceStatus = iota // failed the quality gate
	StatusUnknown
	StatusVerifying
	StatusConfirmed
)

// Overlay is what gets drawn over a face: box plus status text.
type Overlay struct {
	Box    image.Rectangle
	Status FaceStatus
	Text   string
}

// AttendanceEvent is one row of the attendance store.
type AttendanceEvent struct {
	StudentID  string    `json:"student_id"`
	Name       string    `json:"name,omitempty"`
	Date       time.Time `json:"date"`        // calendar day, midnight local time
	RecordedAt time.Time `json:"recorded_at"` // the single canonical event timestamp
	SessionID  string    `json:"session_id,omitempty"`
}

// Student is a registered person whose dataset folder is named after StudentID.
type Student struct {
	StudentID    string    `json:"student_id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
}
