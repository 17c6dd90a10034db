// Package quality decides whether a face crop is sharp and well exposed enough to classify.
package quality

import "fmt"

// Score holds the two measurements the gate looks at. internal/vision computes them
// with OpenCV when a face is detected.
type Score struct {
	Sharpness  float64 // variance of the Laplacian response
	Brightness float64 // mean pixel intensity, 0-255
}

func (s Score) String() string {
	return fmt.Sprintf("sharpness=%.1f brightness=%.1f", s.Sharpness, s.Brightness)
}

// Gate rejects motion-blurred and over/under-exposed crops.
type Gate struct {
	MinSharpness  float64
	MinBrightness float64
	MaxBrightness float64
}

// DefaultGate returns the thresholds the recognizer ships with.
func DefaultGate() Gate {
	return Gate{
		MinSharpness:  100,
		MinBrightness: 50,
		MaxBrightness: 200,
	}
}

// Accepts applies the thresholds to a measured score.
// Sharpness is inclusive, the brightness band is exclusive on both ends.
func (g Gate) Accepts(s Score) bool {
	return s.Sharpness >= g.MinSharpness &&
		s.Brightness > g.MinBrightness &&
		s.Brightness < g.MaxBrightness
}
