// Package config loads service configuration.
//
// Sources are applied in order, each overriding the previous:
//
//	Default() → YAML file → .env file → process environment
//
// The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-faceverify/pkg/antispoof"
	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

// Classifier kinds.
const (
	ClassifierDeepFace = "deepface"
	ClassifierGemini   = "gemini"
)

// Config is the full service configuration.
type Config struct {
	Port           string   `yaml:"port" validate:"required,numeric"`
	LogLevel       string   `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	AllowedOrigins []string `yaml:"allowed_origins" validate:"min=1,dive,required"`

	// MaxImageBytes bounds the decoded image size.
	MaxImageBytes int64 `yaml:"max_image_size" validate:"gt=0"`

	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int `yaml:"rate_limit" validate:"gte=0"`

	AntiSpoof    antispoof.Config    `yaml:"anti_spoof"`
	Verification verification.Config `yaml:"verification"`
	Classifier   ClassifierConfig    `yaml:"classifier"`
}

// ClassifierConfig selects and configures the attribute classifier.
type ClassifierConfig struct {
	Kind string `yaml:"kind" validate:"oneof=deepface gemini"`

	DeepFaceURL     string `yaml:"deepface_url" validate:"omitempty,url"`
	DetectorBackend string `yaml:"detector_backend"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	// YuNetModelPath enables the local face gate when set.
	YuNetModelPath string `yaml:"yunet_model_path"`

	YuNetScoreThreshold float64 `yaml:"yunet_score_threshold" validate:"gt=0,lte=1"`
	YuNetNMSThreshold   float64 `yaml:"yunet_nms_threshold" validate:"gt=0,lte=1"`
	YuNetTopK           int     `yaml:"yunet_top_k" validate:"gt=0"`

	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		Port:     "5000",
		LogLevel: "info",
		AllowedOrigins: []string{
			"http://localhost:8081",
			"http://localhost:19006",
			"http://localhost:8000",
		},
		MaxImageBytes: imagebuf.DefaultMaxBytes,
		AntiSpoof:     antispoof.DefaultConfig(),
		Verification:  verification.DefaultConfig(),
		Classifier: ClassifierConfig{
			Kind:            ClassifierDeepFace,
			DeepFaceURL:     "http://localhost:5005",
			DetectorBackend: "opencv",
			GeminiModel:     "gemini-2.0-flash",
			Timeout:         60 * time.Second,

			YuNetScoreThreshold: 0.6,
			YuNetNMSThreshold:   0.3,
			YuNetTopK:           5000,
		},
	}
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.AntiSpoof.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Classifier.Kind == ClassifierDeepFace && c.Classifier.DeepFaceURL == "" {
		return errors.New("config: deepface_url is required for the deepface classifier")
	}
	if c.Classifier.Kind == ClassifierGemini && c.Classifier.GeminiModel == "" {
		return errors.New("config: gemini_model is required for the gemini classifier")
	}
	return nil
}

// Load builds the configuration. path is an optional YAML file; envFile is an
// optional dotenv file. Missing optional files are not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("PORT", &c.Port)
	e.str("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = splitList(v)
	}
	e.int64("MAX_IMAGE_SIZE", &c.MaxImageBytes)
	e.int("RATE_LIMIT", &c.RateLimit)

	e.int("MIN_IMAGE_WIDTH", &c.AntiSpoof.MinWidth)
	e.int("MIN_IMAGE_HEIGHT", &c.AntiSpoof.MinHeight)
	e.float("MIN_BLUR_SCORE", &c.AntiSpoof.MinSharpness)
	e.float("MAX_EDGE_DENSITY", &c.AntiSpoof.MaxEdgeDensity)

	e.int("MIN_AGE", &c.Verification.MinAge)

	e.str("CLASSIFIER", &c.Classifier.Kind)
	e.str("DEEPFACE_URL", &c.Classifier.DeepFaceURL)
	e.str("DETECTOR_BACKEND", &c.Classifier.DetectorBackend)
	e.str("GEMINI_API_KEY", &c.Classifier.GeminiAPIKey)
	e.str("GEMINI_MODEL", &c.Classifier.GeminiModel)
	e.str("YUNET_MODEL_PATH", &c.Classifier.YuNetModelPath)
	e.float("YUNET_SCORE_THRESHOLD", &c.Classifier.YuNetScoreThreshold)
	e.float("YUNET_NMS_THRESHOLD", &c.Classifier.YuNetNMSThreshold)
	e.int("YUNET_TOP_K", &c.Classifier.YuNetTopK)
	e.duration("CLASSIFIER_TIMEOUT", &c.Classifier.Timeout)

	return errors.Join(e.errs...)
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = d
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
