package web

import (
	"fmt"
	"io"
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-faceverify/pkg/antispoof"
	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/service"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

// detailVerifyFailed is returned for system failures; the cause is only logged.
const detailVerifyFailed = "verification failed, please try again"

// ImageRequest is the body of /verify and /anti-spoof.
type ImageRequest struct {
	Image string `json:"image"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// VerifyResponse is the body of /verify and /verify-file.
type VerifyResponse struct {
	Success          bool                   `json:"success"`
	FaceDetected     bool                   `json:"faceDetected"`
	Age              *int                   `json:"age"`
	AgeRange         *verification.AgeRange `json:"ageRange"`
	Gender           *verification.Gender   `json:"gender"`
	GenderConfidence *float64               `json:"genderConfidence"`
	IsAdult          bool                   `json:"isAdult"`
	IsRealFace       bool                   `json:"isRealFace"`
	Message          string                 `json:"message"`
}

// Checks reports the measured quality signals.
type Checks struct {
	Resolution  string  `json:"resolution"`
	BlurScore   float64 `json:"blur_score"`
	EdgeDensity float64 `json:"edge_density"`
}

// AntiSpoofResponse is the body of /anti-spoof.
type AntiSpoofResponse struct {
	IsReal     bool    `json:"is_real"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	Checks     *Checks `json:"checks"`
}

// NewVerifyResponse converts a service result to its wire form.
func NewVerifyResponse(r *service.Result) VerifyResponse {
	return VerifyResponse{
		Success:          r.Success,
		FaceDetected:     r.FaceDetected,
		Age:              r.Age,
		AgeRange:         r.AgeRange,
		Gender:           r.Gender,
		GenderConfidence: r.GenderConfidence,
		IsAdult:          r.IsAdult,
		IsRealFace:       r.IsRealFace,
		Message:          r.Message,
	}
}

// NewAntiSpoofResponse converts a verdict to its wire form. Checks are
// present only when every quality signal was measured.
func NewAntiSpoofResponse(v antispoof.Verdict) AntiSpoofResponse {
	resp := AntiSpoofResponse{
		IsReal:     v.IsReal,
		Confidence: v.Confidence,
		Message:    v.Message(),
	}
	if m := v.Metrics; m != nil {
		resp.Checks = &Checks{
			Resolution:  m.Resolution(),
			BlurScore:   round(m.Sharpness, 2),
			EdgeDensity: round(m.EdgeDensity, 4),
		}
	}
	return resp
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "healthy", Service: ServiceName})
}

func (s *Server) parseImage(c *fiber.Ctx) (string, error) {
	var req ImageRequest
	if err := c.BodyParser(&req); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return req.Image, nil
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	payload, err := s.parseImage(c)
	if err != nil {
		return err
	}
	if payload == "" {
		return fiber.NewError(fiber.StatusBadRequest, "image is required")
	}

	res, err := s.svc.Verify(c.UserContext(), payload)
	if err != nil {
		return s.verifyError(c, err)
	}
	return c.JSON(NewVerifyResponse(res))
}

func (s *Server) handleVerifyFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	maxBytes := s.svc.MaxImageBytes()
	if fh.Size > maxBytes {
		return fiber.NewError(fiber.StatusBadRequest, tooLargeDetail(maxBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return s.verifyError(c, fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return s.verifyError(c, fmt.Errorf("read upload: %w", err))
	}

	res, err := s.svc.VerifyBytes(c.UserContext(), raw)
	if err != nil {
		return s.verifyError(c, err)
	}
	return c.JSON(NewVerifyResponse(res))
}

// handleAntiSpoof answers every well-formed body with a verdict; an empty or
// undecodable image is a DECODE_ERROR verdict, not a client error.
func (s *Server) handleAntiSpoof(c *fiber.Ctx) error {
	payload, err := s.parseImage(c)
	if err != nil {
		return err
	}

	v, err := s.svc.AntiSpoof(payload)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(NewAntiSpoofResponse(v))
}

// verifyError maps client rejections to 400 with their detail and every other
// failure to a generic 500.
func (s *Server) verifyError(c *fiber.Ctx, err error) error {
	if imagebuf.IsValidationError(err) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.logger.Error("verification failed",
		"error", err,
		"path", c.Path(),
		"request_id", requestID(c))
	return fiber.NewError(fiber.StatusInternalServerError, detailVerifyFailed)
}

func tooLargeDetail(maxBytes int64) string {
	return fmt.Sprintf("image too large, maximum: %d MB", maxBytes/(1024*1024))
}
