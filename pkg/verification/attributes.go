package verification

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// AgeRange is a display bucket for an estimated age.
type AgeRange string

const (
	AgeUnder18 AgeRange = "<18"
	Age18To24  AgeRange = "18-24"
	Age25To34  AgeRange = "25-34"
	Age35To44  AgeRange = "35-44"
	Age45To54  AgeRange = "45-54"
	Age55Plus  AgeRange = "55+"
)

// AgeRangeFor buckets an age. Bounds are inclusive below and exclusive above.
func AgeRangeFor(age int) AgeRange {
	switch {
	case age < 18:
		return AgeUnder18
	case age < 25:
		return Age18To24
	case age < 35:
		return Age25To34
	case age < 45:
		return Age35To44
	case age < 55:
		return Age45To54
	default:
		return Age55Plus
	}
}

// IsAdult reports whether age meets the minimum.
func IsAdult(age, minAge int) bool {
	return age >= minAge
}

// Gender is the display vocabulary for the dominant gender label.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender maps a classifier label to the display vocabulary.
func ParseGender(label string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "man", "male", "m":
		return GenderMale, nil
	case "woman", "female", "f":
		return GenderFemale, nil
	default:
		return "", fmt.Errorf("%w: unknown gender label %q", ErrInvalidEstimate, label)
	}
}

// NeutralGenderConfidence is assigned when a classifier returns a bare label
// without a score distribution. It is a fallback, not a calibrated value.
const NeutralGenderConfidence = 0.5

// NormalizeGender selects the dominant label and its confidence in [0,1].
//
// With a score distribution, the classifier's dominant label is used when it
// has a score, otherwise the highest-scoring label. A bare label gets
// NeutralGenderConfidence.
func (e *Estimate) NormalizeGender() (string, float64, error) {
	if len(e.GenderScores) == 0 {
		if strings.TrimSpace(e.DominantGender) == "" {
			return "", 0, fmt.Errorf("%w: no gender label", ErrInvalidEstimate)
		}
		return e.DominantGender, NeutralGenderConfidence, nil
	}

	label := e.DominantGender
	score, ok := e.GenderScores[label]
	if !ok {
		label, score = argmax(e.GenderScores)
	}
	if math.IsNaN(score) {
		return "", 0, fmt.Errorf("%w: gender score is NaN", ErrInvalidEstimate)
	}
	return label, roundTo(clamp(score/100, 0, 1), 2), nil
}

// argmax returns the highest-scoring label; ties resolve alphabetically.
func argmax(scores map[string]float64) (string, float64) {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best, bestScore := "", math.Inf(-1)
	for _, l := range labels {
		if scores[l] > bestScore {
			best, bestScore = l, scores[l]
		}
	}
	return best, bestScore
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
