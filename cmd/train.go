package cmd

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/andresmejia3/rollcall/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var trainWorkers int

var trainCmd = &cobra.Command{
	Use:         "train",
	Short:       "Train the face model from the dataset directory",
	Long:        "Detects faces in every dataset image, trains the LBPH recognizer and rewrites the model and identity mapping files.",
	Annotations: map[string]string{noDBAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runTrain(cmd)
	},
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&recognizeOpts.Dataset, "dataset", "dataset", "Dataset directory (one folder per student ID)")
	f.StringVar(&recognizeOpts.Model, "model", "face_model.yml", "Output model file")
	f.StringVar(&recognizeOpts.Mapping, "mapping", "id_mapping.json", "Output identity mapping file")
	f.StringVar(&recognizeOpts.Cascade, "cascade", "haarcascade_frontalface_default.xml", "Haar cascade file")
	f.IntVarP(&trainWorkers, "workers", "j", 0, "Parallel detection workers (default: number of CPUs)")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command) error {
	applyRecognizeFlags(cmd, recognizeOpts, Cfg)

	var bar *progressbar.ProgressBar
	trainer := &vision.Trainer{
		DatasetDir:  Cfg.Paths.Dataset,
		CascadePath: Cfg.Paths.Cascade,
		Files:       modelFiles(Cfg),
		Workers:     trainWorkers,
		Logger:      slog.Default(),
		OnStart: func(total int) {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("🧠 Detecting faces"),
				progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
				progressbar.OptionShowCount(),
			)
		},
		OnImage: func() {
			bar.Add(1)
		},
	}

	start := time.Now()
	res, err := trainer.Run(cmd.Context())
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		utils.ShowError("Training failed", err)
		return err
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Model trained in %s: %d faces from %d images, %d students.\n",
		time.Since(start).Round(time.Millisecond), res.Faces, res.Images, res.Students)
	fmt.Fprintf(os.Stderr, "💾 %s / %s (fingerprint %s)\n\n", Cfg.Paths.Model, Cfg.Paths.Mapping, res.Fingerprint[:12])

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "STUDENT ID\tFACES")
	fmt.Fprintln(w, "----------\t-----")
	for _, id := range slices.Sorted(maps.Keys(res.FacesPerStudent)) {
		fmt.Fprintf(w, "%s\t%d\n", id, res.FacesPerStudent[id])
	}
	return w.Flush()
}
