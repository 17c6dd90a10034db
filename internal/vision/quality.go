package vision

import (
	"github.com/andresmejia3/rollcall/internal/quality"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MeasureQuality scores a single-channel face crop: the variance of its Laplacian
// (3x3 aperture, CV_64F, reflect-101 borders) and its mean intensity.
func MeasureQuality(gray gocv.Mat) (quality.Score, error) {
	if gray.Empty() {
		return quality.Score{}, errors.New("empty face crop")
	}
	if gray.Channels() != 1 {
		return quality.Score{}, errors.Errorf("expected a single-channel image, got %d channels", gray.Channels())
	}

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stdDev := gocv.NewMat()
	defer stdDev.Close()
	gocv.MeanStdDev(laplacian, &mean, &stdDev)
	sd := stdDev.GetDoubleAt(0, 0)

	return quality.Score{
		Sharpness:  sd * sd,
		Brightness: gray.Mean().Val1,
	}, nil
}
