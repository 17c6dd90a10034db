// Package recognition runs the real-time attendance loop: capture a frame, detect faces,
// gate them on quality, classify, vote across frames and record confirmed identities.
//
// The package only talks to cameras, detectors and classifiers through the interfaces
// below; internal/vision provides the OpenCV implementations.
package recognition

import (
	"context"
	"errors"
	"image"

	"github.com/andresmejia3/rollcall/internal/identity"
	"github.com/andresmejia3/rollcall/internal/types"
)

var (
	// ErrInitialization wraps every failure that keeps the loop from reaching StateRunning.
	ErrInitialization = errors.New("recognition initialization failed")
	// ErrCapture wraps a camera read failure while running.
	ErrCapture = errors.New("frame capture failed")
)

// Frame is an opaque captured image. The controller closes it once the frame is processed.
type Frame interface {
	Close() error
}

// Camera produces frames. Capture must return within bounded time.
type Camera interface {
	Capture() (Frame, error)
	Close() error
}

// Detector finds faces in a frame.
type Detector interface {
	Detect(Frame) ([]types.FaceObservation, error)
}

// Classifier maps a grayscale face crop to a (label, distance) pair; lower distance means
// a closer match. Implementations normalize the crop themselves.
type Classifier interface {
	Predict(face *image.Gray) (label int, distance float64, err error)
}

// ModelStore gives access to the trained classifier and its identity mapping.
type ModelStore interface {
	Exists() bool
	Open() (Classifier, *identity.Mapping, error)
}

// Trainer builds and persists a model and identity mapping from the dataset.
type Trainer interface {
	Train(ctx context.Context) error
}

// Recorder writes confirmed identities to the attendance store, tagged with the session that saw them.
type Recorder interface {
	Record(ctx context.Context, studentID, sessionID string) (bool, error)
}

// View is what a Renderer draws for one frame.
type View struct {
	Overlays  []types.Overlay
	Threshold float64
}

// Renderer draws overlays on a frame and shows it to the operator.
type Renderer interface {
	Render(Frame, View) error
	Close() error
}

// Controls is polled once per frame for operator input. Poll must not block.
type Controls interface {
	Poll() Command
}

// Command is an operator instruction.
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandThresholdUp
	CommandThresholdDown
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandQuit:
		return "quit"
	case CommandThresholdUp:
		return "threshold-up"
	case CommandThresholdDown:
		return "threshold-down"
	}
	return "invalid"
}

// CommandForKey maps a key code (as returned by a HighGUI-style WaitKey, -1 for none) to a Command.
func CommandForKey(key int) Command {
	if key < 0 {
		return CommandNone
	}
	switch key & 0xFF {
	case 'q', 'Q', 27: // 27 is Esc
		return CommandQuit
	case '+', '=':
		return CommandThresholdUp
	case '-', '_':
		return CommandThresholdDown
	}
	return CommandNone
}

// State is the controller's lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return "invalid"
}
