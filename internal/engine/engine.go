// Package engine runs one generation: resolve, collect, select, compile, prune, render.
package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/openapi2ts/internal/collect"
	"github.com/mark3labs/openapi2ts/internal/compile"
	"github.com/mark3labs/openapi2ts/internal/filter"
	"github.com/mark3labs/openapi2ts/internal/render"
	"github.com/mark3labs/openapi2ts/internal/spec"
	"go.uber.org/zap"
)

// Config is the resolved generation configuration.
type Config struct {
	filter.Config
	// Strict turns unsupported constructs into errors instead of warnings.
	Strict bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{Config: filter.Config{DefaultTag: filter.DefaultTag}, Strict: true}
}

// Option configures Generate.
type Option func(*options)

type options struct {
	log *zap.Logger
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Generate turns a parsed document into a render model. Each call owns its own
// resolver and node arena, so concurrent calls never share state. Any error aborts
// the run and no render model is returned.
func Generate(ctx context.Context, doc *spec.Document, cfg Config, opts ...Option) (*render.Model, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if doc == nil || doc.T == nil {
		return nil, errors.New("no document to generate from")
	}

	s, err := spec.NewResolver(doc, spec.WithStrict(cfg.Strict), spec.WithLogger(log)).Resolve(ctx)
	if err != nil {
		return nil, err
	}

	models, err := collect.Collect(s, collect.WithLogger(log))
	if err != nil {
		return nil, err
	}

	groups, err := filter.Select(s, cfg.Config, log)
	if err != nil {
		return nil, err
	}
	services, err := compile.Compile(groups)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	retained := filter.Retained(s, groups)
	kept := filter.Prune(s, models, retained, cfg.Config)
	log.Info("selection complete",
		zap.Int("operations", len(retained)),
		zap.Int("services", len(services)),
		zap.Int("models", len(kept)),
		zap.Int("modelsCollected", models.Len()))

	out, err := render.Build(s, kept, services)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
