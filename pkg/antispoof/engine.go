// Package antispoof decides whether a frame is a direct capture of a live
// subject or a screen/print re-capture.
//
// The decision is a deterministic chain of threshold gates, evaluated in
// order and short-circuiting on the first failure:
//
//  1. resolution      (LOW_RESOLUTION, 0.3)
//  2. sharpness       (TOO_BLURRY, 0.4)
//  3. edge density    (SUSPECT_PATTERN, 0.5)
//  4. pass            (OK, 0.8)
//
// Each signal is computed only when its gate is reached.
package antispoof

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/quality"
)

// Engine applies the anti-spoof gates. It holds only configuration and is
// safe for concurrent use.
type Engine struct {
	cfg       Config
	extractor *quality.Extractor
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtractor overrides the quality extractor.
func WithExtractor(x *quality.Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine with the given thresholds.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		extractor: quality.NewExtractor(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "antispoof")
	return e
}

// signals supplies the three quality signals on demand.
type signals interface {
	resolution() (width, height int)
	sharpness() float64
	edgeDensity() float64
}

// Decide applies the gates to precomputed metrics.
func (e *Engine) Decide(m quality.Metrics) Verdict {
	return e.evaluate(precomputed(m))
}

// Check applies the gates to a decoded frame.
func (e *Engine) Check(buf *imagebuf.Buffer) Verdict {
	return e.evaluate(lazy{buf: buf, x: e.extractor})
}

// CheckPayload decodes payload and checks it. Decode failures become a
// DECODE_ERROR verdict. An oversized payload is also returned as an error so
// the caller can reject the request.
func (e *Engine) CheckPayload(v *imagebuf.Validator, payload string) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("anti-spoof analysis panicked", "panic", fmt.Sprint(r))
			verdict, err = DecodeFailure(), nil
		}
	}()

	buf, err := v.Decode(payload)
	if err != nil {
		if errors.Is(err, imagebuf.ErrPayloadTooLarge) {
			return DecodeFailure(), err
		}
		e.logger.Warn("anti-spoof decode failed", "error", err)
		return DecodeFailure(), nil
	}
	defer buf.Close()

	return e.Check(buf), nil
}

func (e *Engine) evaluate(s signals) Verdict {
	w, h := s.resolution()
	if w < e.cfg.MinWidth || h < e.cfg.MinHeight {
		e.logger.Debug("resolution gate failed", "width", w, "height", h)
		return fail(ReasonLowResolution, ConfidenceLowResolution)
	}

	// Negated comparisons so a NaN signal fails closed.
	sharp := s.sharpness()
	if !(sharp >= e.cfg.MinSharpness) {
		e.logger.Debug("sharpness gate failed", "sharpness", sharp)
		return fail(ReasonTooBlurry, ConfidenceTooBlurry)
	}

	density := s.edgeDensity()
	m := &quality.Metrics{
		Width:       w,
		Height:      h,
		Sharpness:   sharp,
		EdgeDensity: density,
	}
	if !(density <= e.cfg.MaxEdgeDensity) {
		e.logger.Debug("edge density gate failed", "edge_density", density)
		v := fail(ReasonSuspectPattern, ConfidenceSuspectPattern)
		v.Metrics = m
		return v
	}

	return Verdict{
		IsReal:     true,
		Confidence: ConfidenceOK,
		Reason:     ReasonOK,
		Metrics:    m,
	}
}

type precomputed quality.Metrics

func (p precomputed) resolution() (int, int) { return p.Width, p.Height }
func (p precomputed) sharpness() float64     { return p.Sharpness }
func (p precomputed) edgeDensity() float64   { return p.EdgeDensity }

type lazy struct {
	buf *imagebuf.Buffer
	x   *quality.Extractor
}

func (l lazy) resolution() (int, int) { return l.x.Resolution(l.buf) }
func (l lazy) sharpness() float64     { return l.x.Sharpness(l.buf) }
func (l lazy) edgeDensity() float64   { return l.x.EdgeDensity(l.buf) }
