// Package classifier provides face attribute classifiers that satisfy
// verification.Classifier.
//
// Adapters:
//   - DeepFace calls a DeepFace REST server.
//   - Gemini prompts a multimodal Gemini model for strict JSON.
//   - FaceGate runs a local YuNet detector and only delegates when a face is present.
package classifier

import (
	"log/slog"
	"time"
)

// Config holds adapter configuration. Each adapter reads the fields it needs.
type Config struct {
	// Connection
	BaseURL string // DeepFace server URL
	APIKey  string // Gemini API key (optional when default credentials exist)

	// Models
	Model           string // Gemini model name
	DetectorBackend string // DeepFace face detector backend
	ModelPath       string // YuNet ONNX model

	// Face gate
	ScoreThreshold float64
	NMSThreshold   float64
	TopK           int

	// Timeouts
	Timeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring adapters.
type Option func(*Config)

// WithBaseURL sets the remote server URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the Gemini model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithDetectorBackend sets the DeepFace detector backend, e.g. "opencv" or "retinaface".
func WithDetectorBackend(backend string) Option {
	return func(c *Config) { c.DetectorBackend = backend }
}

// WithModelPath sets the YuNet model path.
func WithModelPath(path string) Option {
	return func(c *Config) { c.ModelPath = path }
}

// WithScoreThreshold sets the minimum face score for the face gate.
func WithScoreThreshold(t float64) Option {
	return func(c *Config) { c.ScoreThreshold = t }
}

// WithNMSThreshold sets the non-maximum suppression threshold for the face gate.
func WithNMSThreshold(t float64) Option {
	return func(c *Config) { c.NMSThreshold = t }
}

// WithTopK caps the candidate boxes the face gate keeps before NMS.
func WithTopK(k int) Option {
	return func(c *Config) { c.TopK = k }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:5005",
		Model:           "gemini-2.0-flash",
		DetectorBackend: "opencv",
		ModelPath:       "models/face_detection_yunet.onnx",
		ScoreThreshold:  0.6,
		NMSThreshold:    0.3,
		TopK:            5000,
		Timeout:         60 * time.Second,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
