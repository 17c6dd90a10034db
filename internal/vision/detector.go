package vision

import (
	"image"
	"time"

	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/andresmejia3/rollcall/internal/quality"
	"github.com/andresmejia3/rollcall/internal/recognition"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Detector finds frontal faces with a Haar cascade.
type Detector struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      image.Point
	maxSize      image.Point
}

// NewDetector loads the cascade file and applies the detection parameters from cfg.
func NewDetector(cascadePath string, cfg config.RecognitionConfig) (*Detector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, errors.Errorf("Error reading cascade file: %v", cascadePath)
	}
	return &Detector{
		classifier:   classifier,
		scaleFactor:  cfg.ScaleFactor,
		minNeighbors: cfg.MinNeighbors,
		minSize:      image.Pt(cfg.MinFaceSize, cfg.MinFaceSize),
		maxSize:      image.Pt(cfg.MaxFaceSize, cfg.MaxFaceSize),
	}, nil
}

// Detect returns every face found in the frame with its grayscale crop.
func (d *Detector) Detect(f recognition.Frame) ([]types.FaceObservation, error) {
	frame, err := asFrame(f)
	if err != nil {
		return nil, err
	}

	rects := d.classifier.DetectMultiScaleWithParams(frame.Gray, d.scaleFactor, d.minNeighbors, 0, d.minSize, d.maxSize)
	if len(rects) == 0 {
		return nil, nil
	}

	now := time.Now()
	bounds := image.Rect(0, 0, frame.Gray.Cols(), frame.Gray.Rows())
	faces := make([]types.FaceObservation, 0, len(rects))
	for _, r := range rects {
		r = r.Intersect(bounds)
		if r.Empty() {
			continue
		}
		crop, score, err := cropFace(frame.Gray, r)
		if err != nil {
			return nil, errors.Wrap(err, "Can not crop face")
		}
		faces = append(faces, types.FaceObservation{Box: r, Crop: crop, Quality: score, Timestamp: now})
	}
	return faces, nil
}

// Close releases the cascade.
func (d *Detector) Close() error {
	return d.classifier.Close()
}

// cropFace copies region r of a single-channel Mat into an image.Gray and scores its quality.
func cropFace(m gocv.Mat, r image.Rectangle) (*image.Gray, quality.Score, error) {
	region := m.Region(r)
	defer region.Close()

	// Regions share memory with the parent and are not continuous; clone before converting.
	owned := region.Clone()
	defer owned.Close()

	score, err := MeasureQuality(owned)
	if err != nil {
		return nil, quality.Score{}, err
	}
	crop, err := matToGray(owned)
	if err != nil {
		return nil, quality.Score{}, err
	}
	return crop, score, nil
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	if m.Channels() != 1 {
		return nil, errors.Errorf("expected a single-channel image, got %d channels", m.Channels())
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, err
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, img.At(x, y))
		}
	}
	return g, nil
}
