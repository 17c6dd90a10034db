package vision

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/andresmejia3/rollcall/internal/dataset"
	"github.com/andresmejia3/rollcall/internal/identity"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// ErrNoFaces means no face was detected in any dataset image.
var ErrNoFaces = errors.New("no faces found in dataset")

// Trainer builds the LBPH model and identity mapping from the dataset directory.
type Trainer struct {
	DatasetDir  string
	CascadePath string
	Files       ModelFiles
	// Workers is the number of parallel detection workers, each with its own cascade.
	Workers int
	Logger  *slog.Logger

	// OnStart is called once with the number of images to process.
	OnStart func(total int)
	// OnImage is called after each image, from worker goroutines.
	OnImage func()
}

// TrainResult summarizes a training run.
type TrainResult struct {
	Students int
	Images   int
	Faces    int
	// FacesPerStudent counts training samples per student ID.
	FacesPerStudent map[string]int
	Fingerprint     string
}

type trainTask struct {
	path  string
	label int
}

type trainSample struct {
	face  gocv.Mat
	label int
}

// Train satisfies recognition.Trainer.
func (t *Trainer) Train(ctx context.Context) error {
	_, err := t.Run(ctx)
	return err
}

// Run scans the dataset, detects one or more faces per image, trains the recognizer and
// writes the model and the fingerprinted mapping.
func (t *Trainer) Run(ctx context.Context) (*TrainResult, error) {
	log := t.Logger
	if log == nil {
		log = slog.Default()
	}

	ds, err := dataset.Scan(t.DatasetDir)
	if err != nil {
		return nil, err
	}
	mapping, err := identity.Build(ds.StudentIDs())
	if err != nil {
		return nil, err
	}

	workers := t.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if t.OnStart != nil {
		t.OnStart(ds.ImageCount())
	}
	log.Info("training started", "students", mapping.Len(), "images", ds.ImageCount(), "workers", workers)

	tasks := make(chan trainTask, workers)
	results := make(chan trainSample, workers*2)
	errc := make(chan error, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			if err := t.detectWorker(tasks, results, log); err != nil {
				errc <- errors.Wrapf(err, "worker %d", workerID)
			}
		}(i)
	}

	// Producer
	go func() {
		defer close(tasks)
		for _, p := range ds.Persons {
			label, _ := mapping.Label(p.StudentID)
			for _, img := range p.Images {
				select {
				case tasks <- trainTask{path: img, label: label}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
		close(errc)
	}()

	var (
		faces  []gocv.Mat
		labels []int
	)
	defer func() {
		for _, f := range faces {
			f.Close()
		}
	}()

	perLabel := make(map[int]int)
	for s := range results {
		faces = append(faces, s.face)
		labels = append(labels, s.label)
		perLabel[s.label]++
	}

	if err := <-errc; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaces
	}

	log.Info("training recognizer", "faces", len(faces))
	recognizer := contrib.NewLBPHFaceRecognizer()
	defer releaseRecognizer(recognizer)
	recognizer.Train(faces, labels)

	if dir := filepath.Dir(t.Files.ModelPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "Can not create model directory")
		}
	}
	recognizer.SaveFile(t.Files.ModelPath)

	fingerprint, err := utils.FileFingerprint(t.Files.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "Model file was not written")
	}
	if err := mapping.Save(t.Files.MappingPath, fingerprint); err != nil {
		return nil, err
	}

	res := &TrainResult{
		Students:        mapping.Len(),
		Images:          ds.ImageCount(),
		Faces:           len(faces),
		FacesPerStudent: make(map[string]int, mapping.Len()),
		Fingerprint:     fingerprint,
	}
	for _, id := range mapping.IDs() {
		label, _ := mapping.Label(id)
		res.FacesPerStudent[id] = perLabel[label]
		if perLabel[label] == 0 {
			log.Warn("no faces found for student", "student_id", id)
		}
	}
	log.Info("model trained", "model", t.Files.ModelPath, "mapping", t.Files.MappingPath, "faces", len(faces))
	return res, nil
}

// detectWorker owns one cascade classifier; CascadeClassifier is not safe for concurrent use.
// Workers keep draining tasks after a failure so the producer never blocks.
func (t *Trainer) detectWorker(tasks <-chan trainTask, results chan<- trainSample, log *slog.Logger) error {
	classifier := gocv.NewCascadeClassifier()
	defer classifier.Close()
	loaded := classifier.Load(t.CascadePath)

	size := image.Pt(t.Files.FaceSize, t.Files.FaceSize)
	for task := range tasks {
		if loaded {
			t.detectFaces(classifier, task, size, results, log)
		}
		if t.OnImage != nil {
			t.OnImage()
		}
	}

	if !loaded {
		return errors.Errorf("Error reading cascade file: %v", t.CascadePath)
	}
	return nil
}

func (t *Trainer) detectFaces(classifier gocv.CascadeClassifier, task trainTask, size image.Point, results chan<- trainSample, log *slog.Logger) {
	img := gocv.IMRead(task.path, gocv.IMReadGrayScale)
	defer img.Close()
	if img.Empty() {
		log.Warn("skipping unreadable image", "path", task.path)
		return
	}

	for _, r := range classifier.DetectMultiScale(img) {
		region := img.Region(r)
		face := gocv.NewMat()
		gocv.Resize(region, &face, size, 0, 0, gocv.InterpolationLinear)
		region.Close()
		gocv.EqualizeHist(face, &face)
		results <- trainSample{face: face, label: task.label}
	}
}
