package evaluation

import (
	"github.com/okian/refeval/internal/adapters/dataset"
	"github.com/okian/refeval/pkg/logger"
	"github.com/okian/refeval/pkg/metrics"
)

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithDataDir sets the directory datasets are read from.
func WithDataDir(dir string) Option {
	return func(e *Evaluator) {
		if dir != "" {
			e.source = dataset.NewFileSource(dir)
		}
	}
}

// WithSource replaces the dataset source entirely.
func WithSource(src dataset.Source) Option {
	return func(e *Evaluator) {
		if src != nil {
			e.source = src
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.metrics = m
		}
	}
}
