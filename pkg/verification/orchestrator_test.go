package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
)

func TestAgeRangeFor(t *testing.T) {
	tests := []struct {
		age  int
		want AgeRange
	}{
		{0, AgeUnder18},
		{17, AgeUnder18},
		{18, Age18To24},
		{24, Age18To24},
		{25, Age25To34},
		{34, Age25To34},
		{35, Age35To44},
		{44, Age35To44},
		{45, Age45To54},
		{54, Age45To54},
		{55, Age55Plus},
		{120, Age55Plus},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.age), func(t *testing.T) {
			if got := AgeRangeFor(tc.age); got != tc.want {
				t.Errorf("AgeRangeFor(%d) = %s, want %s", tc.age, got, tc.want)
			}
		})
	}
}

func TestAgeRangeFor_ExactlyOneBucket(t *testing.T) {
	buckets := map[AgeRange]bool{
		AgeUnder18: true, Age18To24: true, Age25To34: true,
		Age35To44: true, Age45To54: true, Age55Plus: true,
	}
	prev := AgeRangeFor(0)
	changes := 0
	for age := 0; age <= 130; age++ {
		r := AgeRangeFor(age)
		if !buckets[r] {
			t.Fatalf("age %d mapped to unknown bucket %q", age, r)
		}
		if r != prev {
			changes++
			prev = r
		}
	}
	if changes != 5 {
		t.Errorf("expected 5 bucket boundaries, got %d", changes)
	}
}

func TestIsAdult(t *testing.T) {
	for age := -5; age <= 40; age++ {
		if got := IsAdult(age, 18); got != (age >= 18) {
			t.Errorf("IsAdult(%d, 18) = %v", age, got)
		}
	}
	if IsAdult(20, 21) {
		t.Error("IsAdult(20, 21) should be false")
	}
	if !IsAdult(21, 21) {
		t.Error("IsAdult(21, 21) should be true")
	}
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		label   string
		want    Gender
		wantErr bool
	}{
		{"Man", GenderMale, false},
		{"MAN", GenderMale, false},
		{"male", GenderMale, false},
		{"Woman", GenderFemale, false},
		{"female", GenderFemale, false},
		{"Unknown", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			got, err := ParseGender(tc.label)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidEstimate) {
					t.Errorf("expected ErrInvalidEstimate, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("ParseGender(%q) = %s, %v; want %s", tc.label, got, err, tc.want)
			}
		})
	}
}

func TestNormalizeGender(t *testing.T) {
	tests := []struct {
		name      string
		est       Estimate
		wantLabel string
		wantConf  float64
		wantErr   bool
	}{
		{
			name:      "distribution with dominant label",
			est:       Estimate{DominantGender: "Woman", GenderScores: map[string]float64{"Woman": 87.456, "Man": 12.544}},
			wantLabel: "Woman",
			wantConf:  0.87,
		},
		{
			name:      "distribution without dominant label",
			est:       Estimate{GenderScores: map[string]float64{"Woman": 30, "Man": 70}},
			wantLabel: "Man",
			wantConf:  0.7,
		},
		{
			name:      "bare label uses neutral fallback",
			est:       Estimate{DominantGender: "Man"},
			wantLabel: "Man",
			wantConf:  NeutralGenderConfidence,
		},
		{
			name:      "scores above 100 are clamped",
			est:       Estimate{DominantGender: "Man", GenderScores: map[string]float64{"Man": 140}},
			wantLabel: "Man",
			wantConf:  1,
		},
		{
			name:    "no label at all",
			est:     Estimate{},
			wantErr: true,
		},
		{
			name:    "NaN score",
			est:     Estimate{DominantGender: "Man", GenderScores: map[string]float64{"Man": math.NaN()}},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			label, conf, err := tc.est.NormalizeGender()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidEstimate) {
					t.Errorf("expected ErrInvalidEstimate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if label != tc.wantLabel || conf != tc.wantConf {
				t.Errorf("got (%s, %v), want (%s, %v)", label, conf, tc.wantLabel, tc.wantConf)
			}
		})
	}
}

func TestVerify_NoFace(t *testing.T) {
	o := New(WithError(fmt.Errorf("detector: %w", ErrNoFace)), DefaultConfig())

	out, err := o.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("no-face must be an outcome, got error %v", err)
	}
	if out.Success || out.FaceDetected || out.IsAdult {
		t.Errorf("unexpected outcome %+v", out)
	}
	if out.Message != MessageNoFace {
		t.Errorf("Message = %q, want %q", out.Message, MessageNoFace)
	}
	if out.Age != nil || out.Gender != nil || out.AgeRange != nil || out.GenderConfidence != nil {
		t.Error("no-face outcome must not carry attributes")
	}
}

func TestVerify_Minor(t *testing.T) {
	mock := NewMock(Estimate{Age: 17, DominantGender: "Man", GenderScores: map[string]float64{"Man": 92, "Woman": 8}})
	o := New(mock, DefaultConfig())

	out, err := o.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !out.Success || !out.FaceDetected {
		t.Errorf("expected success with face, got %+v", out)
	}
	if out.IsAdult {
		t.Error("age 17 must not be adult")
	}
	if *out.AgeRange != AgeUnder18 {
		t.Errorf("AgeRange = %s, want <18", *out.AgeRange)
	}
	if *out.Gender != GenderMale {
		t.Errorf("Gender = %s, want MALE", *out.Gender)
	}
	if *out.GenderConfidence != 0.92 {
		t.Errorf("GenderConfidence = %v, want 0.92", *out.GenderConfidence)
	}
	if !strings.Contains(out.Message, "at least 18") {
		t.Errorf("Message %q should state the minimum age", out.Message)
	}
	if mock.CallCount("Analyze") != 1 {
		t.Errorf("Analyze called %d times, want 1", mock.CallCount("Analyze"))
	}
}

func TestVerify_Adult(t *testing.T) {
	o := New(NewMock(Estimate{Age: 29.8, DominantGender: "Woman"}), DefaultConfig())

	out, err := o.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !out.IsAdult || out.Message != MessageVerified {
		t.Errorf("expected verified adult, got %+v", out)
	}
	if *out.Age != 29 {
		t.Errorf("Age = %d, want 29 (truncated)", *out.Age)
	}
	if *out.AgeRange != Age25To34 {
		t.Errorf("AgeRange = %s, want 25-34", *out.AgeRange)
	}
	if *out.Gender != GenderFemale || *out.GenderConfidence != NeutralGenderConfidence {
		t.Errorf("gender = %s/%v, want FEMALE/0.5", *out.Gender, *out.GenderConfidence)
	}
}

func TestVerify_ConfigurableMinAge(t *testing.T) {
	o := New(NewMock(Estimate{Age: 19, DominantGender: "Man"}), Config{MinAge: 21})

	out, err := o.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if out.IsAdult {
		t.Error("age 19 must not pass a minimum of 21")
	}
	if !strings.Contains(out.Message, "21") {
		t.Errorf("Message %q should mention 21", out.Message)
	}
}

func TestVerify_ClassifierFailurePropagates(t *testing.T) {
	boom := errors.New("model crashed")
	o := New(WithError(boom), DefaultConfig())

	out, err := o.Verify(context.Background(), nil)
	if out != nil {
		t.Errorf("expected no outcome, got %+v", out)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped classifier error, got %v", err)
	}
}

func TestVerify_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		c    Classifier
	}{
		{"nil estimate", &Mock{AnalyzeFunc: func(context.Context, *imagebuf.Buffer) (*Estimate, error) { return nil, nil }}},
		{"negative age", NewMock(Estimate{Age: -3, DominantGender: "Man"})},
		{"NaN age", NewMock(Estimate{Age: math.NaN(), DominantGender: "Man"})},
		{"unknown label", NewMock(Estimate{Age: 30, DominantGender: "Unknown"})},
		{"missing label", NewMock(Estimate{Age: 30})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := New(tc.c, DefaultConfig()).Verify(context.Background(), nil)
			if out != nil {
				t.Errorf("ambiguous estimate produced outcome %+v", out)
			}
			if !errors.Is(err, ErrInvalidEstimate) {
				t.Errorf("expected ErrInvalidEstimate, got %v", err)
			}
		})
	}
}

func TestVerify_Concurrent(t *testing.T) {
	mock := NewMock(Estimate{Age: 40, DominantGender: "Man"})
	o := New(mock, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Verify(context.Background(), nil); err != nil {
				t.Errorf("Verify: %v", err)
			}
		}()
	}
	wg.Wait()

	if mock.CallCount("Analyze") != 16 {
		t.Errorf("Analyze called %d times, want 16", mock.CallCount("Analyze"))
	}
}

func TestWarm(t *testing.T) {
	mock := NewMock(Estimate{})
	o := New(mock, DefaultConfig())

	if err := o.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if mock.CallCount("Warm") != 1 {
		t.Errorf("Warm called %d times, want 1", mock.CallCount("Warm"))
	}
}
