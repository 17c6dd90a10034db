// Package identity maps the classifier's numeric labels to student IDs and back.
//
// A Mapping is built once at training time from the dataset folder names, written next to
// the trained model and treated as read-only after it is loaded.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

var (
	// ErrUnknownLabel is returned when the classifier produces a label the mapping has never seen.
	ErrUnknownLabel = errors.New("label not present in identity mapping")
	// ErrUnknownStudent is returned when encoding a student ID that was not in the dataset.
	ErrUnknownStudent = errors.New("student not present in identity mapping")
	// ErrFingerprintMismatch means the mapping was written for a different model file.
	ErrFingerprintMismatch = errors.New("identity mapping does not belong to the trained model")
)

// Mapping is an immutable bidirectional label <-> student ID table.
// Labels are dense: 0..Len()-1 in lexicographic order of student IDs.
type Mapping struct {
	byLabel []string
	byID    map[string]int
}

// Build assigns labels to ids in lexicographic order. Duplicates and empty ids are rejected.
func Build(ids []string) (*Mapping, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	m := &Mapping{
		byLabel: make([]string, 0, len(sorted)),
		byID:    make(map[string]int, len(sorted)),
	}
	for _, id := range sorted {
		if id == "" {
			return nil, errors.New("empty student id")
		}
		if _, dup := m.byID[id]; dup {
			return nil, fmt.Errorf("duplicate student id %q", id)
		}
		m.byID[id] = len(m.byLabel)
		m.byLabel = append(m.byLabel, id)
	}
	return m, nil
}

// Label returns the numeric label of a student ID.
func (m *Mapping) Label(id string) (int, error) {
	label, ok := m.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStudent, id)
	}
	return label, nil
}

// Identity returns the student ID of a numeric label.
func (m *Mapping) Identity(label int) (string, error) {
	if label < 0 || label >= len(m.byLabel) {
		return "", fmt.Errorf("%w: %d", ErrUnknownLabel, label)
	}
	return m.byLabel[label], nil
}

// Len returns the number of identities.
func (m *Mapping) Len() int { return len(m.byLabel) }

// IDs returns the student IDs ordered by label.
func (m *Mapping) IDs() []string {
	return append([]string(nil), m.byLabel...)
}

// manifest is the on-disk representation.
type manifest struct {
	ModelFingerprint string         `json:"model_fingerprint"`
	Labels           map[string]int `json:"labels"`
}

// Save writes the mapping together with the fingerprint of the model it was trained with.
func (m *Mapping) Save(path, modelFingerprint string) error {
	data, err := json.MarshalIndent(manifest{
		ModelFingerprint: modelFingerprint,
		Labels:           m.byID,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a mapping and checks that it was written for the model with the given fingerprint.
// An empty expected fingerprint skips the check.
func Load(path, expectedFingerprint string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var mf manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decode identity mapping: %w", err)
	}
	if expectedFingerprint != "" && mf.ModelFingerprint != expectedFingerprint {
		return nil, ErrFingerprintMismatch
	}

	m := &Mapping{
		byLabel: make([]string, len(mf.Labels)),
		byID:    make(map[string]int, len(mf.Labels)),
	}
	for id, label := range mf.Labels {
		if id == "" {
			return nil, errors.New("identity mapping contains an empty student id")
		}
		if label < 0 || label >= len(mf.Labels) || m.byLabel[label] != "" {
			return nil, fmt.Errorf("identity mapping has an invalid label %d for %q", label, id)
		}
		m.byLabel[label] = id
		m.byID[id] = label
	}
	return m, nil
}
