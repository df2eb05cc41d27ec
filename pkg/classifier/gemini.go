package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

const providerGemini = "gemini"

const geminiScope = "https://www.googleapis.com/auth/generative-language"

const geminiInstruction = `You estimate face attributes for an age verification gate.
Look at the photo and answer with a single JSON object and nothing else:
{"face_detected": boolean, "age": number, "gender": "Man" | "Woman", "gender_confidence": number}
- face_detected is false when there is no single clearly visible human face.
- age is your best estimate in years.
- gender_confidence is between 0 and 1.
When face_detected is false, omit the other fields.`

// Gemini classifies frames with a multimodal Gemini model.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini adapter. Without an API key it falls back to
// application default credentials.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.Model == "" {
		return nil, WrapError(providerGemini, ErrNoModel)
	}

	auth, err := geminiAuth(ctx, cfg.APIKey)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	client, err := genai.NewClient(ctx, auth)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	m := client.GenerativeModel(cfg.Model)
	temp := float32(0)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(geminiInstruction)},
	}

	return &Gemini{
		client: client,
		model:  m,
		config: cfg,
		logger: cfg.Logger.With("component", "classifier.gemini"),
	}, nil
}

func geminiAuth(ctx context.Context, apiKey string) (option.ClientOption, error) {
	if key := strings.TrimSpace(apiKey); key != "" {
		return option.WithAPIKey(key), nil
	}
	creds, err := google.FindDefaultCredentials(ctx, geminiScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	return option.WithTokenSource(oauth2.ReuseTokenSource(nil, creds.TokenSource)), nil
}

// Analyze implements verification.Classifier.
func (g *Gemini) Analyze(ctx context.Context, img *imagebuf.Buffer) (*verification.Estimate, error) {
	jpeg, err := img.EncodeJPEG()
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx,
		genai.Text("Estimate the face attributes in this photo."),
		genai.ImageData("jpeg", jpeg),
	)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	est, err := parseGeminiEstimate(firstText(resp))
	if err != nil {
		return nil, err
	}

	g.logger.Debug("gemini analysis complete",
		"model", g.config.Model,
		"latency_ms", time.Since(start).Milliseconds())
	return est, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

type geminiEstimate struct {
	FaceDetected     *bool    `json:"face_detected"`
	Age              *float64 `json:"age"`
	Gender           string   `json:"gender"`
	GenderConfidence *float64 `json:"gender_confidence"`
}

// parseGeminiEstimate turns the model's JSON answer into an Estimate.
// Anything other than a well-formed answer fails closed.
func parseGeminiEstimate(text string) (*verification.Estimate, error) {
	text = stripCodeFences(strings.TrimSpace(text))
	if text == "" {
		return nil, WrapError(providerGemini, fmt.Errorf("%w: empty response", verification.ErrInvalidEstimate))
	}

	var out geminiEstimate
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("%w: bad JSON: %v", verification.ErrInvalidEstimate, err))
	}

	if out.FaceDetected == nil {
		return nil, WrapError(providerGemini, fmt.Errorf("%w: face_detected missing", verification.ErrInvalidEstimate))
	}
	if !*out.FaceDetected {
		return nil, verification.ErrNoFace
	}
	if out.Age == nil {
		return nil, WrapError(providerGemini, fmt.Errorf("%w: age missing", verification.ErrInvalidEstimate))
	}

	est := &verification.Estimate{
		Age:            *out.Age,
		DominantGender: out.Gender,
	}
	if out.GenderConfidence != nil && out.Gender != "" {
		// Estimate scores are percentages.
		est.GenderScores = map[string]float64{out.Gender: *out.GenderConfidence * 100}
	}
	return est, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
