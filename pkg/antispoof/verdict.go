package antispoof

import "github.com/teslashibe/go-faceverify/pkg/quality"

// Reason identifies which gate decided a verdict.
type Reason string

const (
	ReasonOK             Reason = "OK"
	ReasonLowResolution  Reason = "LOW_RESOLUTION"
	ReasonTooBlurry      Reason = "TOO_BLURRY"
	ReasonSuspectPattern Reason = "SUSPECT_PATTERN"
	ReasonDecodeError    Reason = "DECODE_ERROR"
)

// Fixed severity per outcome. These are not probabilities.
const (
	ConfidenceOK             = 0.8
	ConfidenceLowResolution  = 0.3
	ConfidenceTooBlurry      = 0.4
	ConfidenceSuspectPattern = 0.5
	ConfidenceDecodeError    = 0.0
)

var reasonMessages = map[Reason]string{
	ReasonOK:             "image appears authentic",
	ReasonLowResolution:  "resolution too low",
	ReasonTooBlurry:      "image too blurry",
	ReasonSuspectPattern: "suspicious pattern detected",
	ReasonDecodeError:    "analysis failed, please try again",
}

// Message returns the human-readable description of r.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Verdict is the outcome of the anti-spoof gates.
type Verdict struct {
	IsReal     bool
	Confidence float64 // 0-1
	Reason     Reason

	// Metrics is set only when every signal was computed.
	Metrics *quality.Metrics
}

// Message returns the human-readable reason.
func (v Verdict) Message() string {
	return v.Reason.Message()
}

func fail(reason Reason, confidence float64) Verdict {
	return Verdict{Reason: reason, Confidence: confidence}
}

// DecodeFailure is the verdict for a frame that could not be decoded.
func DecodeFailure() Verdict {
	return fail(ReasonDecodeError, ConfidenceDecodeError)
}
