package recognition

import (
	"fmt"
	"image"
	"time"

	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/andresmejia3/rollcall/internal/identity"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/voter"
	"github.com/google/uuid"
)

// Stats counts what happened during a session.
type Stats struct {
	Frames    int
	Faces     int
	Rejected  int
	Unknown   int
	Verifying int
	Confirmed int
	Recorded  int
	Failures  int
}

// Session is the per-run state of the recognition loop. It is created when the loop starts,
// mutated only by the controller, and dropped at teardown.
type Session struct {
	ID        string
	StartedAt time.Time
	Stats     Stats

	threshold  float64
	step       float64
	voter      *voter.Voter
	classifier Classifier
	mapping    *identity.Mapping
}

// NewSession builds a session around a loaded model. An empty id gets a random UUID.
func NewSession(id string, cfg config.RecognitionConfig, classifier Classifier, mapping *identity.Mapping) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:         id,
		StartedAt:  time.Now(),
		threshold:  clampThreshold(cfg.Threshold),
		step:       cfg.ThresholdStep,
		voter:      voter.New(cfg.HistorySize, cfg.ConsensusFrames),
		classifier: classifier,
		mapping:    mapping,
	}
}

// Threshold returns the current confidence threshold.
func (s *Session) Threshold() float64 { return s.threshold }

// AdjustThreshold moves the threshold by steps*step, clamped to [0, 100], and returns the new value.
func (s *Session) AdjustThreshold(steps int) float64 {
	s.threshold = clampThreshold(s.threshold + float64(steps)*s.step)
	return s.threshold
}

// Voter returns the session's consistency voter.
func (s *Session) Voter() *voter.Voter { return s.voter }

// Classify runs the classifier on face and applies the threshold and identity mapping.
// Distances at or above the threshold are a NoMatch regardless of label.
func (s *Session) Classify(face *image.Gray) types.ClassificationResult {
	label, distance, err := s.classifier.Predict(face)
	if err != nil {
		return types.ClassificationResult{Outcome: types.OutcomeFailed, Label: label, Distance: distance, Err: err}
	}
	if distance >= s.threshold {
		return types.ClassificationResult{
			Outcome:  types.OutcomeNoMatch,
			Label:    label,
			Identity: types.UnknownIdentity,
			Distance: distance,
		}
	}
	id, err := s.mapping.Identity(label)
	if err != nil {
		return types.ClassificationResult{
			Outcome:  types.OutcomeFailed,
			Label:    label,
			Distance: distance,
			Err:      fmt.Errorf("classifier label %d: %w", label, err),
		}
	}
	return types.ClassificationResult{
		Outcome:  types.OutcomeMatch,
		Label:    label,
		Identity: id,
		Distance: distance,
	}
}

func clampThreshold(t float64) float64 {
	if t < config.MinThreshold {
		return config.MinThreshold
	}
	if t > config.MaxThreshold {
		return config.MaxThreshold
	}
	return t
}
