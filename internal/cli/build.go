package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-faceverify/internal/config"
	"github.com/teslashibe/go-faceverify/internal/log"
	"github.com/teslashibe/go-faceverify/pkg/antispoof"
	"github.com/teslashibe/go-faceverify/pkg/classifier"
	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/service"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

// newClassifier builds the configured classifier. The returned cleanup
// releases native and network resources and is never nil.
func newClassifier(ctx context.Context, cfg config.ClassifierConfig) (verification.Classifier, func() error, error) {
	logger := log.L()
	var closers []func() error
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var c verification.Classifier
	switch cfg.Kind {
	case config.ClassifierDeepFace:
		df, err := classifier.NewDeepFace(
			classifier.WithBaseURL(cfg.DeepFaceURL),
			classifier.WithDetectorBackend(cfg.DetectorBackend),
			classifier.WithTimeout(cfg.Timeout),
			classifier.WithLogger(logger),
		)
		if err != nil {
			return nil, cleanup, err
		}
		c = df
	case config.ClassifierGemini:
		g, err := classifier.NewGemini(ctx,
			classifier.WithAPIKey(cfg.GeminiAPIKey),
			classifier.WithModel(cfg.GeminiModel),
			classifier.WithTimeout(cfg.Timeout),
			classifier.WithLogger(logger),
		)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, g.Close)
		c = g
	default:
		return nil, cleanup, fmt.Errorf("unknown classifier %q", cfg.Kind)
	}

	if cfg.YuNetModelPath != "" {
		gate, err := classifier.NewFaceGate(c,
			classifier.WithModelPath(cfg.YuNetModelPath),
			classifier.WithScoreThreshold(cfg.YuNetScoreThreshold),
			classifier.WithNMSThreshold(cfg.YuNetNMSThreshold),
			classifier.WithTopK(cfg.YuNetTopK),
			classifier.WithLogger(logger),
		)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, gate.Close)
		c = gate
	}

	return c, cleanup, nil
}

func newValidator(cfg *config.Config) *imagebuf.Validator {
	return imagebuf.NewValidator(cfg.MaxImageBytes)
}

func newEngine(cfg *config.Config) *antispoof.Engine {
	return antispoof.New(cfg.AntiSpoof, antispoof.WithLogger(log.L()))
}

// newChecker builds a service for anti-spoof checks. It needs no classifier.
func newChecker(cfg *config.Config) *service.Service {
	return service.New(newValidator(cfg), newEngine(cfg), nil, service.WithLogger(log.L()))
}

// newService wires the full verification pipeline.
func newService(ctx context.Context, cfg *config.Config) (*service.Service, func() error, error) {
	c, cleanup, err := newClassifier(ctx, cfg.Classifier)
	if err != nil {
		cleanup()
		return nil, func() error { return nil }, err
	}

	orch := verification.New(c, cfg.Verification, verification.WithLogger(log.L()))
	svc := service.New(newValidator(cfg), newEngine(cfg), orch, service.WithLogger(log.L()))
	return svc, cleanup, nil
}
