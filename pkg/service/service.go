// Package service composes payload validation, the anti-spoof engine and the
// verification orchestrator into the request-level operations the transport
// and CLI expose.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/go-faceverify/pkg/antispoof"
	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

// ErrNoClassifier is returned by verification calls on a service built
// without an orchestrator.
var ErrNoClassifier = errors.New("service: no classifier configured")

// Result is a verification outcome plus the liveness signal for the same frame.
type Result struct {
	*verification.Outcome

	// IsRealFace is informational; it never changes Success.
	IsRealFace bool
}

// Service handles one request per call and holds no per-request state.
type Service struct {
	validator    *imagebuf.Validator
	engine       *antispoof.Engine
	orchestrator *verification.Orchestrator
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service. o may be nil for a service that only runs
// anti-spoof checks.
func New(v *imagebuf.Validator, e *antispoof.Engine, o *verification.Orchestrator, opts ...Option) *Service {
	s := &Service{
		validator:    v,
		engine:       e,
		orchestrator: o,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "service")
	return s
}

// MaxImageBytes returns the configured payload limit.
func (s *Service) MaxImageBytes() int64 {
	return s.validator.MaxBytes
}

// Warm preloads classifier models. Failures are logged, not returned, so a
// slow or absent model server never blocks startup.
func (s *Service) Warm(ctx context.Context) {
	if s.orchestrator == nil {
		return
	}
	if err := s.orchestrator.Warm(ctx); err != nil {
		s.logger.Warn("model warm-up failed", "error", err)
		return
	}
	s.logger.Info("models ready")
}

// Verify decodes a base64 payload and verifies it.
// A rejected payload returns an *imagebuf.ValidationError.
func (s *Service) Verify(ctx context.Context, payload string) (*Result, error) {
	buf, err := s.validator.Decode(payload)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	return s.verify(ctx, buf)
}

// VerifyBytes verifies a raw upload.
func (s *Service) VerifyBytes(ctx context.Context, raw []byte) (*Result, error) {
	buf, err := s.validator.DecodeBytes(raw)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	return s.verify(ctx, buf)
}

func (s *Service) verify(ctx context.Context, buf *imagebuf.Buffer) (*Result, error) {
	if s.orchestrator == nil {
		return nil, ErrNoClassifier
	}
	out, err := s.orchestrator.Verify(ctx, buf)
	if err != nil {
		return nil, err
	}

	res := &Result{Outcome: out}
	if out.FaceDetected {
		res.IsRealFace = s.engine.Check(buf).IsReal
	}
	return res, nil
}

// AntiSpoof runs the liveness heuristics on a base64 payload. Undecodable
// payloads produce a DECODE_ERROR verdict; an oversized payload also returns
// the validation error.
func (s *Service) AntiSpoof(payload string) (antispoof.Verdict, error) {
	return s.engine.CheckPayload(s.validator, payload)
}

// AntiSpoofBytes runs the liveness heuristics on a raw image. Like AntiSpoof,
// only an oversized image returns an error.
func (s *Service) AntiSpoofBytes(raw []byte) (antispoof.Verdict, error) {
	buf, err := s.validator.DecodeBytes(raw)
	if err != nil {
		if errors.Is(err, imagebuf.ErrPayloadTooLarge) {
			return antispoof.DecodeFailure(), err
		}
		s.logger.Warn("anti-spoof decode failed", "error", err)
		return antispoof.DecodeFailure(), nil
	}
	defer buf.Close()

	return s.engine.Check(buf), nil
}
