package vision

import (
	"image"
	"io"
	"os"

	"github.com/andresmejia3/rollcall/internal/identity"
	"github.com/andresmejia3/rollcall/internal/recognition"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Normalizer turns a raw grayscale crop into the classifier's input:
// fixed size, CLAHE contrast equalization, non-local means denoising.
type Normalizer struct {
	size  int
	clahe gocv.CLAHE
}

// NewNormalizer returns a normalizer producing size x size crops.
func NewNormalizer(size int) *Normalizer {
	return &Normalizer{
		size:  size,
		clahe: gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8)),
	}
}

// Apply returns a new Mat; the caller owns it.
func (n *Normalizer) Apply(src gocv.Mat) gocv.Mat {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(n.size, n.size), 0, 0, gocv.InterpolationLinear)

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	n.clahe.Apply(resized, &enhanced)

	out := gocv.NewMat()
	gocv.FastNlMeansDenoising(enhanced, &out)
	return out
}

// Close releases the CLAHE instance.
func (n *Normalizer) Close() error {
	return n.clahe.Close()
}

// Classifier runs an LBPH recognizer on normalized crops.
type Classifier struct {
	recognizer *contrib.LBPHFaceRecognizer
	normalizer *Normalizer
}

// Predict normalizes face and returns the recognizer's label and distance.
func (c *Classifier) Predict(face *image.Gray) (int, float64, error) {
	if face == nil || face.Rect.Empty() {
		return -1, 0, errors.New("empty face crop")
	}
	mat, err := gocv.ImageGrayToMatGray(face)
	if err != nil {
		return -1, 0, errors.Wrap(err, "Can not convert face crop")
	}
	defer mat.Close()

	normalized := c.normalizer.Apply(mat)
	defer normalized.Close()

	res := c.recognizer.PredictExtendedResponse(normalized)
	if res.Label < 0 {
		return int(res.Label), float64(res.Confidence), errors.New("recognizer returned no label")
	}
	return int(res.Label), float64(res.Confidence), nil
}

// Close releases the recognizer and the normalizer.
func (c *Classifier) Close() error {
	errRecognizer := releaseRecognizer(c.recognizer)
	errNormalizer := c.normalizer.Close()
	if errRecognizer != nil {
		return errRecognizer
	}
	return errNormalizer
}

// releaseRecognizer frees the native LBPH model on gocv versions that expose Close.
func releaseRecognizer(r *contrib.LBPHFaceRecognizer) error {
	if closer, ok := any(r).(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ModelFiles locates the trained LBPH model and its identity mapping on disk.
type ModelFiles struct {
	ModelPath   string
	MappingPath string
	FaceSize    int
}

// Exists reports whether both files are present.
func (m ModelFiles) Exists() bool {
	return fileExists(m.ModelPath) && fileExists(m.MappingPath)
}

// Open verifies that the mapping was written for this exact model file and loads both.
func (m ModelFiles) Open() (recognition.Classifier, *identity.Mapping, error) {
	fingerprint, err := utils.FileFingerprint(m.ModelPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can not read model file")
	}

	mapping, err := identity.Load(m.MappingPath, fingerprint)
	if err != nil {
		return nil, nil, err
	}

	recognizer := contrib.NewLBPHFaceRecognizer()
	recognizer.LoadFile(m.ModelPath)

	return &Classifier{recognizer: recognizer, normalizer: NewNormalizer(m.FaceSize)}, mapping, nil
}

// Remove deletes the model and mapping so the next run retrains.
func (m ModelFiles) Remove() error {
	for _, p := range []string{m.ModelPath, m.MappingPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
