package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/rollcall/internal/attendance"
	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/andresmejia3/rollcall/internal/recognition"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/andresmejia3/rollcall/internal/vision"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// RecognizeOptions holds the flags of the recognize command. Unset flags keep the config value.
type RecognizeOptions struct {
	Camera    int
	Threshold float64
	Dataset   string
	Model     string
	Mapping   string
	Cascade   string
	Window    bool
	DryRun    bool
	Workers   int
}

var recognizeOpts RecognizeOptions

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Run real-time recognition and record attendance",
	Long: "Opens the camera, recognizes registered students and records the first sighting of each student per day.\n" +
		"Trains the model from the dataset first if no model exists. Keys: q quit, +/- adjust the confidence threshold.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRecognize(cmd, recognizeOpts)
	},
}

func init() {
	f := recognizeCmd.Flags()
	f.IntVar(&recognizeOpts.Camera, "camera", 0, "Camera device index")
	f.Float64VarP(&recognizeOpts.Threshold, "threshold", "t", 65, "Initial confidence threshold (LBPH distance, lower is stricter)")
	f.StringVar(&recognizeOpts.Dataset, "dataset", "dataset", "Dataset directory (one folder per student ID)")
	f.StringVar(&recognizeOpts.Model, "model", "face_model.yml", "Trained model file")
	f.StringVar(&recognizeOpts.Mapping, "mapping", "id_mapping.json", "Identity mapping file")
	f.StringVar(&recognizeOpts.Cascade, "cascade", "haarcascade_frontalface_default.xml", "Haar cascade file")
	f.BoolVarP(&recognizeOpts.Window, "window", "w", true, "Show the annotated video window (disable for headless runs, stop with Ctrl+C)")
	f.BoolVar(&recognizeOpts.DryRun, "dry-run", false, "Keep attendance in memory instead of PostgreSQL")
	f.IntVarP(&recognizeOpts.Workers, "workers", "j", 0, "Training workers if a model must be built (default: number of CPUs)")
	rootCmd.AddCommand(recognizeCmd)
}

// applyRecognizeFlags copies explicitly set flags over the loaded configuration.
func applyRecognizeFlags(cmd *cobra.Command, opts RecognizeOptions, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("camera") {
		cfg.Recognition.Camera = opts.Camera
	}
	if f.Changed("threshold") {
		cfg.Recognition.Threshold = opts.Threshold
	}
	if f.Changed("window") {
		cfg.Recognition.ShowWindow = opts.Window
	}
	if f.Changed("dataset") {
		cfg.Paths.Dataset = opts.Dataset
	}
	if f.Changed("model") {
		cfg.Paths.Model = opts.Model
	}
	if f.Changed("mapping") {
		cfg.Paths.Mapping = opts.Mapping
	}
	if f.Changed("cascade") {
		cfg.Paths.Cascade = opts.Cascade
	}
}

func runRecognize(cmd *cobra.Command, opts RecognizeOptions) error {
	applyRecognizeFlags(cmd, opts, Cfg)
	if err := Cfg.Validate(); err != nil {
		utils.ShowError("Invalid configuration", err)
		return err
	}
	rc := Cfg.Recognition
	log := slog.Default()

	sessionID := uuid.NewString()

	var st attendance.Store = DB
	var memory *attendance.MemoryStore
	if opts.DryRun {
		memory = attendance.NewMemoryStore()
		st = memory
		fmt.Fprintln(os.Stderr, "🧪 Dry run: attendance is kept in memory only.")
	}
	recorder := attendance.NewRecorder(st, attendance.WithLogger(log))

	detector, err := vision.NewDetector(Cfg.Paths.Cascade, rc)
	if err != nil {
		utils.ShowError("Failed to load face detector", err)
		return err
	}
	defer detector.Close()

	files := modelFiles(Cfg)
	deps := recognition.Deps{
		Models: files,
		Trainer: &vision.Trainer{
			DatasetDir:  Cfg.Paths.Dataset,
			CascadePath: Cfg.Paths.Cascade,
			Files:       files,
			Workers:     opts.Workers,
			Logger:      log,
		},
		OpenCamera: func() (recognition.Camera, error) {
			cam, err := vision.OpenCamera(rc.Camera)
			if err != nil {
				return nil, err
			}
			return cam, nil
		},
		Detector: detector,
		Recorder: recorder,
		Logger:   log,
	}
	if rc.ShowWindow {
		display := vision.NewDisplay("rollcall - Face Recognition")
		deps.Renderer = display
		deps.Controls = display
	}

	fmt.Fprintf(os.Stderr, "🎥 Session %s: camera %d, threshold %.0f\n", sessionID[:8], rc.Camera, rc.Threshold)
	if rc.ShowWindow {
		fmt.Fprintln(os.Stderr, "⌨️  Press 'q' to quit, '+'/'-' to adjust threshold")
	}

	ctl := recognition.NewController(rc, sessionID, deps)
	runErr := ctl.Run(cmd.Context())

	if s := ctl.Session(); s != nil {
		printSessionSummary(s)
	}
	if memory != nil {
		printEvents(memory)
	}

	if runErr != nil {
		utils.ShowError("Recognition stopped", runErr)
		return runErr
	}
	return nil
}

func modelFiles(cfg *config.Config) vision.ModelFiles {
	return vision.ModelFiles{
		ModelPath:   cfg.Paths.Model,
		MappingPath: cfg.Paths.Mapping,
		FaceSize:    cfg.Recognition.FaceSize,
	}
}

func printSessionSummary(s *recognition.Session) {
	st := s.Stats
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 SESSION SUMMARY (%s)\n", time.Since(s.StartedAt).Round(time.Second))
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🎞️  Frames:            %d\n", st.Frames)
	fmt.Fprintf(os.Stderr, "👁️  Faces detected:    %d\n", st.Faces)
	fmt.Fprintf(os.Stderr, "🌫️  Low quality:       %d\n", st.Rejected)
	fmt.Fprintf(os.Stderr, "❓ Unknown:           %d\n", st.Unknown)
	fmt.Fprintf(os.Stderr, "✅ Newly recorded:    %d\n", st.Recorded)
	if st.Failures > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Classifier errors: %d\n", st.Failures)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

func printEvents(m *attendance.MemoryStore) {
	events := m.Events()
	if len(events) == 0 {
		fmt.Println("No attendance recorded.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "STUDENT ID\tDATE\tTIME")
	fmt.Fprintln(w, "----------\t----\t----")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ev.StudentID, ev.Date.Format(time.DateOnly), ev.RecordedAt.Format(time.TimeOnly))
	}
	w.Flush()
}
