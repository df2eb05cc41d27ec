// Package quality extracts the image quality signals used by the anti-spoof
// engine: resolution, Laplacian sharpness and Canny edge density.
package quality

import (
	"fmt"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"gocv.io/x/gocv"
)

// Default Canny hysteresis thresholds.
const (
	DefaultCannyLow  = 100
	DefaultCannyHigh = 200
)

// Metrics holds the quality signals of one frame.
type Metrics struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Sharpness   float64 `json:"sharpness_score"`
	EdgeDensity float64 `json:"edge_density"` // 0-1
}

// Resolution returns the "WxH" form of the frame size.
func (m Metrics) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// Extractor computes Metrics. It holds no per-frame state and is safe for
// concurrent use.
type Extractor struct {
	CannyLow  float32
	CannyHigh float32
}

// NewExtractor returns an extractor with the default Canny thresholds.
func NewExtractor() *Extractor {
	return &Extractor{
		CannyLow:  DefaultCannyLow,
		CannyHigh: DefaultCannyHigh,
	}
}

// Resolution returns the frame width and height.
func (e *Extractor) Resolution(buf *imagebuf.Buffer) (width, height int) {
	return buf.Width(), buf.Height()
}

// Sharpness returns the variance of the Laplacian of the grayscale frame.
// Blurred or re-photographed frames score low.
func (e *Extractor) Sharpness(buf *imagebuf.Buffer) float64 {
	gray := buf.Gray()
	defer gray.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}

// EdgeDensity returns the fraction of pixels marked as edges by a Canny
// detector. Screen and print captures inflate it with moiré and pixel-grid
// artifacts.
func (e *Extractor) EdgeDensity(buf *imagebuf.Buffer) float64 {
	total := buf.Width() * buf.Height()
	if total == 0 {
		return 0
	}

	gray := buf.Gray()
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, e.CannyLow, e.CannyHigh)

	return float64(gocv.CountNonZero(edges)) / float64(total)
}

// Extract computes all three signals over the whole frame.
func (e *Extractor) Extract(buf *imagebuf.Buffer) Metrics {
	w, h := e.Resolution(buf)
	return Metrics{
		Width:       w,
		Height:      h,
		Sharpness:   e.Sharpness(buf),
		EdgeDensity: e.EdgeDensity(buf),
	}
}
