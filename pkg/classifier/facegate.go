package classifier

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

const providerFaceGate = "facegate"

// Detection is a detected face.
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection score (0-1)
}

// Area returns the area of the bounding box.
func (d Detection) Area() float64 {
	return d.W * d.H
}

// SelectBest picks the primary face: confidence * 0.7 + relative area * 0.3.
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}
	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}
	return best
}

// FaceGate enforces face detection locally with YuNet before delegating to
// another classifier. Frames without a face never leave the process.
type FaceGate struct {
	detector gocv.FaceDetectorYN
	next     verification.Classifier
	config   *Config
	logger   *slog.Logger
	mu       sync.Mutex // FaceDetectorYN is not safe for concurrent use
}

// NewFaceGate loads the YuNet model and wraps next.
func NewFaceGate(next verification.Classifier, opts ...Option) (*FaceGate, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if next == nil {
		return nil, WrapError(providerFaceGate, fmt.Errorf("wrapped classifier required"))
	}
	if cfg.ModelPath == "" {
		return nil, WrapError(providerFaceGate, ErrNoModel)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, WrapError(providerFaceGate, fmt.Errorf("model file not found: %s", cfg.ModelPath))
	}

	// Input size is reset per frame in Detect.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(320, 320),
		float32(cfg.ScoreThreshold),
		float32(cfg.NMSThreshold),
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &FaceGate{
		detector: detector,
		next:     next,
		config:   cfg,
		logger:   cfg.Logger.With("component", "classifier.facegate"),
	}, nil
}

// Detect finds faces in the frame.
func (g *FaceGate) Detect(img *imagebuf.Buffer) ([]Detection, error) {
	bgr := gocv.NewMat()
	defer bgr.Close()

	src := img.Mat()
	switch src.Channels() {
	case 1:
		gocv.CvtColor(src, &bgr, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(src, &bgr, gocv.ColorBGRAToBGR)
	default:
		src.CopyTo(&bgr)
	}
	if bgr.Empty() {
		return nil, WrapError(providerFaceGate, fmt.Errorf("empty image"))
	}

	imgW := float64(bgr.Cols())
	imgH := float64(bgr.Rows())

	faces := gocv.NewMat()
	defer faces.Close()

	g.mu.Lock()
	g.detector.SetInputSize(image.Pt(bgr.Cols(), bgr.Rows()))
	g.detector.Detect(bgr, &faces)
	g.mu.Unlock()

	// Rows: x, y, w, h, five landmark pairs, score.
	var dets []Detection
	for r := 0; r < faces.Rows(); r++ {
		dets = append(dets, Detection{
			X:          float64(faces.GetFloatAt(r, 0)) / imgW,
			Y:          float64(faces.GetFloatAt(r, 1)) / imgH,
			W:          float64(faces.GetFloatAt(r, 2)) / imgW,
			H:          float64(faces.GetFloatAt(r, 3)) / imgH,
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}
	return dets, nil
}

// Analyze implements verification.Classifier.
func (g *FaceGate) Analyze(ctx context.Context, img *imagebuf.Buffer) (*verification.Estimate, error) {
	dets, err := g.Detect(img)
	if err != nil {
		return nil, err
	}

	best := SelectBest(dets)
	if best == nil {
		return nil, verification.ErrNoFace
	}
	g.logger.Debug("face gate passed", "faces", len(dets), "score", best.Confidence)

	return g.next.Analyze(ctx, img)
}

// Warm warms the wrapped classifier.
func (g *FaceGate) Warm(ctx context.Context) error {
	if w, ok := g.next.(verification.Warmer); ok {
		return w.Warm(ctx)
	}
	return nil
}

// Close releases the detector.
func (g *FaceGate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detector.Close()
	return nil
}
