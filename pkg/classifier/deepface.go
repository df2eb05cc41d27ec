package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-faceverify/internal/httpc"
	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

const providerDeepFace = "deepface"

// noFaceMarker is the phrase DeepFace uses when enforce_detection rejects a frame.
const noFaceMarker = "face could not be detected"

// DeepFace classifies frames with a DeepFace REST server.
// The frame is sent in memory as a JPEG data URL; nothing touches disk.
type DeepFace struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewDeepFace creates a DeepFace adapter.
func NewDeepFace(opts ...Option) (*DeepFace, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.BaseURL == "" {
		return nil, WrapError(providerDeepFace, ErrNoEndpoint)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &DeepFace{
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "classifier.deepface"),
	}, nil
}

type deepFaceRequest struct {
	Img              string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
	DetectorBackend  string   `json:"detector_backend,omitempty"`
}

type deepFaceResult struct {
	Age            *float64           `json:"age"`
	DominantGender string             `json:"dominant_gender"`
	Gender         map[string]float64 `json:"gender"`
}

type deepFaceResponse struct {
	Results []deepFaceResult `json:"results"`
	Error   string           `json:"error"`
}

// Analyze implements verification.Classifier.
func (d *DeepFace) Analyze(ctx context.Context, img *imagebuf.Buffer) (*verification.Estimate, error) {
	jpeg, err := img.EncodeJPEG()
	if err != nil {
		return nil, WrapError(providerDeepFace, err)
	}

	start := time.Now()
	results, err := d.analyze(ctx, jpeg, true)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, verification.ErrNoFace
	}

	// Multiple faces: the first result is the detector's primary face.
	r := results[0]
	if r.Age == nil {
		return nil, fmt.Errorf("%w: deepface returned no age", verification.ErrInvalidEstimate)
	}

	d.logger.Debug("deepface analysis complete",
		"faces", len(results),
		"latency_ms", time.Since(start).Milliseconds())

	return &verification.Estimate{
		Age:            *r.Age,
		DominantGender: r.DominantGender,
		GenderScores:   r.Gender,
	}, nil
}

// Warm runs one non-enforcing analysis so the server loads its models
// before the first real request.
func (d *DeepFace) Warm(ctx context.Context) error {
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 224, 224, gocv.MatTypeCV8UC3)
	buf, err := imagebuf.FromMat(blank)
	if err != nil {
		return WrapError(providerDeepFace, err)
	}
	defer buf.Close()

	jpeg, err := buf.EncodeJPEG()
	if err != nil {
		return WrapError(providerDeepFace, err)
	}

	start := time.Now()
	if _, err := d.analyze(ctx, jpeg, false); err != nil {
		return err
	}
	d.logger.Info("deepface models warmed", "latency_ms", time.Since(start).Milliseconds())
	return nil
}

func (d *DeepFace) analyze(ctx context.Context, jpeg []byte, enforce bool) ([]deepFaceResult, error) {
	req := deepFaceRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		Actions:          []string{"age", "gender"},
		EnforceDetection: enforce,
		DetectorBackend:  d.config.DetectorBackend,
	}

	resp, err := httpc.PostJSON(ctx, d.http, d.config.BaseURL+"/analyze", req)
	if err != nil {
		return nil, WrapError(providerDeepFace, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerDeepFace, fmt.Errorf("read response: %w", err))
	}

	var result deepFaceResponse
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK || result.Error != "" {
		msg := result.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if strings.Contains(strings.ToLower(msg), noFaceMarker) {
			return nil, verification.ErrNoFace
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Provider:   providerDeepFace,
		}
	}
	if decodeErr != nil {
		return nil, WrapError(providerDeepFace, fmt.Errorf("decode response: %w", decodeErr))
	}

	return result.Results, nil
}
