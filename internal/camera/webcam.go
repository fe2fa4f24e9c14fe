// Package camera opens OpenCV capture devices as frame sources.
package camera

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/zombor/receipt-cam/internal/capture"
)

var errEmptyFrame = errors.New("empty frame")

// Webcam reads frames from a local camera index, video file or stream URL
type Webcam struct {
	mu    sync.Mutex
	vc    *gocv.VideoCapture
	frame gocv.Mat
	rgba  gocv.Mat
}

// Open opens device, which is either a camera index such as "0" or a path/URL.
// Non-zero width and height are requested from the device.
func Open(device string, width, height int) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, &capture.DeviceError{Op: "open", Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &capture.DeviceError{Op: "open", Err: fmt.Errorf("device %q not available", device)}
	}

	if width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	slog.Info("Opened capture device",
		"device", device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
	)

	return &Webcam{
		vc:    vc,
		frame: gocv.NewMat(),
		rgba:  gocv.NewMat(),
	}, nil
}

// Read blocks for the next frame and returns it as a new RGBA image
func (w *Webcam) Read() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ok := w.vc.Read(&w.frame); !ok || w.frame.Empty() {
		return nil, errEmptyFrame
	}

	// OpenCV delivers BGR
	gocv.CvtColor(w.frame, &w.rgba, gocv.ColorBGRToRGBA)

	img := image.NewRGBA(image.Rect(0, 0, w.rgba.Cols(), w.rgba.Rows()))
	copy(img.Pix, w.rgba.ToBytes())
	return img, nil
}

// Close releases the device
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.frame.Close()
	w.rgba.Close()
	if err := w.vc.Close(); err != nil {
		return fmt.Errorf("closing video capture: %w", err)
	}
	return nil
}
