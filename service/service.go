// Package service wraps a detector registry with logging, metrics and file
// handling for the CLI, the watcher and the NATS responder.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/metrics"
	"github.com/c360studio/diagramtype/source/extract"
)

// Classifier is the part of *detect.Registry the service needs.
type Classifier interface {
	Classify(text string, cfg detect.Config) (string, error)
	LocatorFor(key string) (string, bool)
}

// Result is the outcome of classifying one input.
type Result struct {
	Key        string        `json:"key"`
	Locator    string        `json:"locator,omitempty"`
	HasLocator bool          `json:"-"`
	Duration   time.Duration `json:"-"`
}

// FileResult is the outcome for one diagram block inside a file.
type FileResult struct {
	Path    string `json:"path"`
	Block   int    `json:"block"`
	Line    int    `json:"line,omitempty"`
	Key     string `json:"key,omitempty"`
	Locator string `json:"locator,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service classifies text and files.
type Service struct {
	classifier Classifier
	options    detect.Config
	extractors *extract.Registry
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithOptions sets the detector config used when a call passes none.
func WithOptions(cfg detect.Config) Option {
	return func(s *Service) { s.options = cfg }
}

// WithMetrics records every classification on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExtractors replaces the default extractor registry.
func WithExtractors(r *extract.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.extractors = r
		}
	}
}

// New creates a service around c.
func New(c Classifier, opts ...Option) *Service {
	s := &Service{
		classifier: c,
		extractors: extract.NewRegistry(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect classifies text and resolves the locator of the resulting key.
// A nil cfg falls back to the service options.
func (s *Service) Detect(text string, cfg detect.Config) (Result, error) {
	if cfg == nil {
		cfg = s.options
	}

	start := time.Now()
	key, err := s.classifier.Classify(text, cfg)
	elapsed := time.Since(start)

	if err != nil {
		failed := ""
		var detErr *detect.DetectorError
		if errors.As(err, &detErr) {
			failed = detErr.Key
		}
		s.metrics.ObserveFailure(failed, elapsed)
		s.logger.Warn("Classification failed",
			slog.String("detector", failed),
			slog.String("error", err.Error()))
		return Result{Duration: elapsed}, fmt.Errorf("classify: %w", err)
	}

	s.metrics.ObserveClassification(key, elapsed)

	locator, ok := s.classifier.LocatorFor(key)
	s.logger.Debug("Classified diagram",
		slog.String("key", key),
		slog.String("locator", locator),
		slog.Duration("elapsed", elapsed))

	return Result{
		Key:        key,
		Locator:    locator,
		HasLocator: ok,
		Duration:   elapsed,
	}, nil
}

// DetectFile classifies every diagram block in the file at path. A failing
// block is reported in its FileResult; the returned error covers reading and
// extraction only.
func (s *Service) DetectFile(path string) ([]FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s.DetectContent(path, content)
}

// DetectContent is DetectFile for content already in memory. The filename
// selects the extractor.
func (s *Service) DetectContent(filename string, content []byte) ([]FileResult, error) {
	blocks, err := s.extractors.Extract(filename, content)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	results := make([]FileResult, 0, len(blocks))
	for _, b := range blocks {
		fr := FileResult{
			Path:  filename,
			Block: b.Index,
			Line:  b.Line,
		}

		res, err := s.Detect(b.Text, nil)
		if err != nil {
			fr.Error = err.Error()
		} else {
			fr.Key = res.Key
			fr.Locator = res.Locator
		}
		results = append(results, fr)
	}

	return results, nil
}
