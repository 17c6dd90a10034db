// Package vision is the OpenCV side of rollcall: camera capture, Haar cascade detection,
// the LBPH classifier and its training, and the operator window.
package vision

import (
	"github.com/andresmejia3/rollcall/internal/recognition"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// maxEmptyReads bounds how many empty frames Capture tolerates before failing.
// Webcams commonly return a few while warming up.
const maxEmptyReads = 5

// Frame is a captured image: the color original for display and the equalized
// grayscale copy detection runs on.
type Frame struct {
	Color gocv.Mat
	Gray  gocv.Mat
}

// Close releases both matrices.
func (f *Frame) Close() error {
	errColor := f.Color.Close()
	errGray := f.Gray.Close()
	if errColor != nil {
		return errColor
	}
	return errGray
}

// Camera reads frames from a local video device.
type Camera struct {
	device int
	vc     *gocv.VideoCapture
}

// OpenCamera opens the video device with the given index.
func OpenCamera(device int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "Can not open camera %d", device)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("Camera %d is not available", device)
	}
	return &Camera{device: device, vc: vc}, nil
}

// Capture reads the next frame and prepares its grayscale copy.
func (c *Camera) Capture() (recognition.Frame, error) {
	img := gocv.NewMat()
	for i := 0; ; i++ {
		if ok := c.vc.Read(&img); !ok {
			img.Close()
			return nil, errors.Errorf("Can not read device %d", c.device)
		}
		if !img.Empty() {
			break
		}
		if i >= maxEmptyReads {
			img.Close()
			return nil, errors.Errorf("Device %d returned %d empty frames", c.device, i+1)
		}
	}

	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	return &Frame{Color: img, Gray: gray}, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.vc.Close()
}

func asFrame(f recognition.Frame) (*Frame, error) {
	vf, ok := f.(*Frame)
	if !ok {
		return nil, errors.Errorf("unsupported frame type %T", f)
	}
	return vf, nil
}
