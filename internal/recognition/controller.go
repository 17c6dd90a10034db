package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/andresmejia3/rollcall/internal/quality"
	"github.com/andresmejia3/rollcall/internal/types"
)

// Deps are the collaborators of a Controller. Renderer and Controls may be nil for headless runs,
// in which case the loop only stops when its context is cancelled.
type Deps struct {
	Models     ModelStore
	Trainer    Trainer
	OpenCamera func() (Camera, error)
	Detector   Detector
	Recorder   Recorder
	Renderer   Renderer
	Controls   Controls
	Logger     *slog.Logger
}

// Controller drives the recognition state machine:
// INITIALIZING -> RUNNING -> (STOPPED | FAILED).
type Controller struct {
	cfg       config.RecognitionConfig
	deps      Deps
	gate      quality.Gate
	sessionID string
	log       *slog.Logger

	state   State
	session *Session
	camera  Camera
	quit    bool
}

// NewController returns a controller in StateInitializing. sessionID tags recorded events;
// an empty value gets a random UUID.
func NewController(cfg config.RecognitionConfig, sessionID string, deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		cfg:  cfg,
		deps: deps,
		gate: quality.Gate{
			MinSharpness:  cfg.MinSharpness,
			MinBrightness: cfg.MinBrightness,
			MaxBrightness: cfg.MaxBrightness,
		},
		sessionID: sessionID,
		log:       log,
		state:     StateInitializing,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Session returns the running session, or nil before initialization completes.
func (c *Controller) Session() *Session { return c.session }

// Run initializes the pipeline and processes frames until the operator quits, ctx is cancelled
// (both end in StateStopped and a nil error) or a fatal condition occurs (StateFailed).
func (c *Controller) Run(ctx context.Context) error {
	c.setState(StateInitializing)
	if err := c.initialize(ctx); err != nil {
		c.teardown()
		return c.fail(fmt.Errorf("%w: %w", ErrInitialization, err))
	}
	defer c.teardown()

	c.setState(StateRunning)
	c.log.Info("recognition started", "session", c.session.ID, "threshold", c.session.Threshold())

	for {
		// Quit and cancellation are only observed between frames.
		if c.quit || ctx.Err() != nil {
			c.setState(StateStopped)
			return nil
		}
		if err := c.Step(ctx); err != nil {
			return c.fail(err)
		}
	}
}

func (c *Controller) initialize(ctx context.Context) error {
	if c.deps.Models == nil || c.deps.OpenCamera == nil || c.deps.Detector == nil || c.deps.Recorder == nil {
		return errors.New("controller is missing a required dependency")
	}

	if !c.deps.Models.Exists() {
		if c.deps.Trainer == nil {
			return errors.New("no trained model found and no trainer configured")
		}
		c.log.Info("no trained model found, training from dataset")
		if err := c.deps.Trainer.Train(ctx); err != nil {
			return fmt.Errorf("train model: %w", err)
		}
	}

	classifier, mapping, err := c.deps.Models.Open()
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if mapping.Len() == 0 {
		closeClassifier(classifier)
		return errors.New("identity mapping is empty")
	}

	camera, err := c.deps.OpenCamera()
	if err != nil {
		closeClassifier(classifier)
		return fmt.Errorf("open camera: %w", err)
	}
	c.camera = camera

	c.session = NewSession(c.sessionID, c.cfg, classifier, mapping)
	return nil
}

// Step processes exactly one frame: capture, detect, per-face pipeline, render, poll input.
// Only a capture failure is returned; everything per-face is logged and swallowed.
func (c *Controller) Step(ctx context.Context) error {
	frame, err := c.camera.Capture()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCapture, err)
	}
	defer frame.Close()
	c.session.Stats.Frames++

	faces, err := c.deps.Detector.Detect(frame)
	if err != nil {
		c.log.Warn("face detection failed", "frame", c.session.Stats.Frames, "error", err)
		faces = nil
	}

	overlays := make([]types.Overlay, 0, len(faces))
	for _, face := range faces {
		c.session.Stats.Faces++
		if ov, ok := c.processFace(ctx, face); ok {
			overlays = append(overlays, ov)
		}
	}

	if c.deps.Renderer != nil {
		view := View{Overlays: overlays, Threshold: c.session.Threshold()}
		if err := c.deps.Renderer.Render(frame, view); err != nil {
			c.log.Warn("render failed", "error", err)
		}
	}

	if c.deps.Controls != nil {
		c.handle(c.deps.Controls.Poll())
	}
	return nil
}

// processFace runs gate -> classify -> vote -> record for one face.
// It returns false when the face must be skipped for this frame.
func (c *Controller) processFace(ctx context.Context, face types.FaceObservation) (types.Overlay, bool) {
	ov := types.Overlay{Box: face.Box}
	s := c.session

	if face.Crop == nil || face.Crop.Rect.Empty() || !c.gate.Accepts(face.Quality) {
		s.Stats.Rejected++
		c.log.Debug("face rejected by quality gate", "box", face.Box, "quality", face.Quality.String())
		ov.Status = types.StatusRejected
		ov.Text = "Low quality"
		return ov, true
	}

	res := s.Classify(face.Crop)
	switch res.Outcome {
	case types.OutcomeFailed:
		s.Stats.Failures++
		c.log.Warn("classification failed, skipping face", "box", face.Box, "error", res.Err)
		return ov, false

	case types.OutcomeNoMatch:
		s.Stats.Unknown++
		ov.Status = types.StatusUnknown
		ov.Text = fmt.Sprintf("Unknown (%.1f)", res.Distance)
		return ov, true
	}

	id, confirmed := s.voter.Observe(res.Identity)
	if !confirmed {
		s.Stats.Verifying++
		ov.Status = types.StatusVerifying
		ov.Text = "Verifying..."
		return ov, true
	}

	s.Stats.Confirmed++
	recorded, err := c.deps.Recorder.Record(ctx, id, s.ID)
	if err != nil {
		// The next confirmed frame retries naturally since recording is idempotent.
		c.log.Error("failed to record attendance", "student_id", id, "error", err)
	} else if recorded {
		s.Stats.Recorded++
	}

	ov.Status = types.StatusConfirmed
	ov.Text = fmt.Sprintf("ID: %s (%.1f)", id, res.Distance)
	return ov, true
}

func (c *Controller) handle(cmd Command) {
	switch cmd {
	case CommandQuit:
		c.quit = true
	case CommandThresholdUp:
		c.log.Info("confidence threshold changed", "threshold", c.session.AdjustThreshold(1))
	case CommandThresholdDown:
		c.log.Info("confidence threshold changed", "threshold", c.session.AdjustThreshold(-1))
	}
}

func (c *Controller) teardown() {
	if c.camera != nil {
		if err := c.camera.Close(); err != nil {
			c.log.Warn("failed to release camera", "error", err)
		}
		c.camera = nil
	}
	if c.deps.Renderer != nil {
		if err := c.deps.Renderer.Close(); err != nil {
			c.log.Warn("failed to close display", "error", err)
		}
	}
	if c.session == nil {
		return
	}
	closeClassifier(c.session.classifier)
	st := c.session.Stats
	c.log.Info("recognition session ended",
		"session", c.session.ID,
		"duration", time.Since(c.session.StartedAt).Round(time.Second).String(),
		"frames", st.Frames, "faces", st.Faces, "recorded", st.Recorded)
}

// closeClassifier releases classifiers that hold native resources.
func closeClassifier(cl Classifier) {
	if closer, ok := cl.(io.Closer); ok {
		closer.Close()
	}
}

func (c *Controller) fail(err error) error {
	c.setState(StateFailed)
	c.log.Error("recognition failed", "error", err)
	return err
}

func (c *Controller) setState(s State) {
	if c.state != s {
		c.log.Debug("recognition state", "from", c.state.String(), "to", s.String())
	}
	c.state = s
}
