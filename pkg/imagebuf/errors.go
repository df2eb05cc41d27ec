package imagebuf

import (
	"errors"
	"fmt"
)

// Sentinel errors for rejected payloads.
var (
	// ErrPayloadTooLarge is returned when a payload exceeds the configured maximum.
	ErrPayloadTooLarge = errors.New("imagebuf: payload too large")

	// ErrInvalidImage is returned when a payload does not decode to pixels.
	ErrInvalidImage = errors.New("imagebuf: invalid image")
)

// ValidationError is a client-caused rejection. Detail is safe to show to callers.
type ValidationError struct {
	Err    error
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Detail
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func tooLarge(maxBytes int64) error {
	return &ValidationError{
		Err:    ErrPayloadTooLarge,
		Detail: fmt.Sprintf("image too large, maximum: %d MB", maxBytes/(1024*1024)),
	}
}

func invalidImage(reason string) error {
	return &ValidationError{
		Err:    ErrInvalidImage,
		Detail: "invalid image: " + reason,
	}
}

// IsValidationError reports whether err is a client-caused payload rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
