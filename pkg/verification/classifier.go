package verification

import (
	"context"
	"errors"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
)

// Sentinel errors for classifier results.
var (
	// ErrNoFace is the clean "no face detected" signal. It is an expected
	// business outcome, not a failure.
	ErrNoFace = errors.New("verification: no face detected")

	// ErrInvalidEstimate is returned when a classifier result is ambiguous or
	// partial. It fails closed as a system failure.
	ErrInvalidEstimate = errors.New("verification: invalid face attribute estimate")
)

// Classifier estimates face attributes for one frame.
//
// Implementations must enforce face detection: when no usable face is found
// they return ErrNoFace (possibly wrapped). Any other error is treated as a
// system failure. Implementations must be safe for concurrent use.
type Classifier interface {
	Analyze(ctx context.Context, img *imagebuf.Buffer) (*Estimate, error)
}

// Warmer is implemented by classifiers that benefit from loading their
// models before the first request.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Estimate is a raw face attribute estimate.
type Estimate struct {
	// Age is the estimated age in years.
	Age float64

	// DominantGender is the label the classifier considers most likely,
	// e.g. "Man" or "Woman".
	DominantGender string

	// GenderScores maps each label to its confidence in percent (0-100).
	// Nil when the classifier returns a bare label.
	GenderScores map[string]float64
}
