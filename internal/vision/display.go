package vision

import (
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/rollcall/internal/recognition"
	"github.com/andresmejia3/rollcall/internal/types"
	"gocv.io/x/gocv"
)

var (
	green  = color.RGBA{0, 255, 0, 0}
	yellow = color.RGBA{255, 255, 0, 0}
	red    = color.RGBA{255, 0, 0, 0}
	gray   = color.RGBA{160, 160, 160, 0}
	white  = color.RGBA{255, 255, 255, 0}
)

// StatusColor is the box color for a face status.
func StatusColor(s types.FaceStatus) color.RGBA {
	switch s {
	case types.StatusConfirmed:
		return green
	case types.StatusVerifying:
		return yellow
	case types.StatusUnknown:
		return red
	}
	return gray
}

// Display shows annotated frames in a HighGUI window and reads keys from it.
// It is both the recognition Renderer and its Controls.
type Display struct {
	window *gocv.Window
}

// NewDisplay opens a window with the given title.
func NewDisplay(title string) *Display {
	return &Display{window: gocv.NewWindow(title)}
}

// Render draws every overlay and the current threshold on the color frame and shows it.
func (d *Display) Render(f recognition.Frame, v recognition.View) error {
	frame, err := asFrame(f)
	if err != nil {
		return err
	}
	img := &frame.Color

	for _, ov := range v.Overlays {
		c := StatusColor(ov.Status)
		gocv.Rectangle(img, ov.Box, c, 2)
		gocv.PutText(img, ov.Text, labelOrigin(ov.Box), gocv.FontHersheySimplex, 0.5, c, 2)
	}

	hud := fmt.Sprintf("Threshold: %.0f  (+/- adjust, q quit)", v.Threshold)
	gocv.PutText(img, hud, image.Pt(10, 25), gocv.FontHersheySimplex, 0.6, white, 2)

	d.window.IMShow(*img)
	return nil
}

// Poll waits 1ms for a key; it also lets HighGUI repaint the window.
func (d *Display) Poll() recognition.Command {
	return recognition.CommandForKey(d.window.WaitKey(1))
}

// Close destroys the window.
func (d *Display) Close() error {
	return d.window.Close()
}

// labelOrigin puts text above the box, or inside it when the box touches the top edge.
func labelOrigin(box image.Rectangle) image.Point {
	y := box.Min.Y - 10
	if y < 15 {
		y = box.Min.Y + 20
	}
	return image.Pt(box.Min.X, y)
}
