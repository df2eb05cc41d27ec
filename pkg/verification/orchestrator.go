// Package verification turns a face attribute estimate into a deterministic
// age/gender/adult decision.
//
// The orchestrator distinguishes two failure kinds:
//   - ErrNoFace from the classifier is a normal negative Outcome.
//   - Any other classifier error, or an ambiguous estimate, is returned as an
//     error and never becomes a verified Outcome.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
)

// DefaultMinAge is the default registration age.
const DefaultMinAge = 18

// Outcome messages.
const (
	MessageVerified = "verification succeeded"
	MessageNoFace   = "no clear face detected"
)

// Outcome is the result of verifying one frame.
type Outcome struct {
	Success      bool
	FaceDetected bool

	// Set only when a face was analyzed.
	Age              *int
	AgeRange         *AgeRange
	Gender           *Gender
	GenderConfidence *float64

	IsAdult bool
	Message string
}

// NoFaceOutcome is the outcome when no usable face was found.
func NoFaceOutcome() *Outcome {
	return &Outcome{
		Success:      false,
		FaceDetected: false,
		IsAdult:      false,
		Message:      MessageNoFace,
	}
}

// Config holds orchestrator settings.
type Config struct {
	MinAge int `yaml:"min_age" validate:"gte=0"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{MinAge: DefaultMinAge}
}

// Orchestrator drives a Classifier and normalizes its output.
type Orchestrator struct {
	classifier Classifier
	cfg        Config
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator.
func New(c Classifier, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: c,
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "verification")
	return o
}

// Warm preloads classifier models when the classifier supports it.
func (o *Orchestrator) Warm(ctx context.Context) error {
	w, ok := o.classifier.(Warmer)
	if !ok {
		return nil
	}
	return w.Warm(ctx)
}

// Verify classifies a frame and applies the minimum-age gate.
// The call is synchronous; there is no retry.
func (o *Orchestrator) Verify(ctx context.Context, img *imagebuf.Buffer) (*Outcome, error) {
	est, err := o.classifier.Analyze(ctx, img)
	if err != nil {
		if errors.Is(err, ErrNoFace) {
			o.logger.Warn("no face detected", "error", err)
			return NoFaceOutcome(), nil
		}
		return nil, fmt.Errorf("verification: classifier failed: %w", err)
	}
	if est == nil {
		return nil, fmt.Errorf("%w: classifier returned no estimate", ErrInvalidEstimate)
	}
	return o.Evaluate(est)
}

// Evaluate normalizes an estimate into an Outcome.
func (o *Orchestrator) Evaluate(est *Estimate) (*Outcome, error) {
	if math.IsNaN(est.Age) || math.IsInf(est.Age, 0) || est.Age < 0 {
		return nil, fmt.Errorf("%w: age %v", ErrInvalidEstimate, est.Age)
	}

	label, confidence, err := est.NormalizeGender()
	if err != nil {
		return nil, err
	}
	gender, err := ParseGender(label)
	if err != nil {
		return nil, err
	}

	age := int(math.Floor(est.Age))
	ageRange := AgeRangeFor(age)
	adult := IsAdult(age, o.cfg.MinAge)

	msg := MessageVerified
	if !adult {
		msg = fmt.Sprintf("you must be at least %d years old to register", o.cfg.MinAge)
	}

	o.logger.Info("analysis succeeded", "age", age, "gender", gender, "adult", adult)

	return &Outcome{
		Success:          true,
		FaceDetected:     true,
		Age:              &age,
		AgeRange:         &ageRange,
		Gender:           &gender,
		GenderConfidence: &confidence,
		IsAdult:          adult,
		Message:          msg,
	}, nil
}
