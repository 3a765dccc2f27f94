package indexer

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/resilience"
)

const (
	defaultMaxBufferedDocs = 10000
	defaultLockName        = "writer"
)

// Options configure an Index. Schema is required.
type Options struct {
	Schema *document.Schema
	// Analyzer is the fallback for fields without a named analyzer.
	// Defaults to the standard analyzer.
	Analyzer analysis.Analyzer
	// FieldAnalyzers override the analyzer of individual fields.
	FieldAnalyzers map[string]analysis.Analyzer
	// Registry resolves FieldSpec.Analyzer names.
	Registry *analysis.Registry

	// MaxBufferedDocs triggers a flush of the in-memory buffer into a
	// pending segment.
	MaxBufferedDocs int
	// MaxBufferedBytes triggers a flush on the buffer's estimated size.
	// Zero disables the check.
	MaxBufferedBytes int64
	// MergeThreshold merges the committed segments down to one when a
	// commit would leave more than this many. Zero disables merging.
	MergeThreshold int
	Compression    segment.Compression

	// LockName and Owner identify the writer lease on backends that
	// implement storage.Locker.
	LockName string
	Owner    string

	Retry   resilience.RetryConfig
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.MaxBufferedDocs <= 0 {
		o.MaxBufferedDocs = defaultMaxBufferedDocs
	}
	if o.Compression == "" {
		o.Compression = segment.CompressionNone
	}
	if o.Registry == nil {
		o.Registry = analysis.NewRegistry()
	}
	if o.LockName == "" {
		o.LockName = defaultLockName
	}
	if o.Owner == "" {
		o.Owner = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Retry.Logger == nil {
		o.Retry.Logger = o.Logger
	}
	return o
}

// analyzer assembles the per-field dispatch table: explicit overrides win
// over FieldSpec.Analyzer names, and everything else falls back to
// Options.Analyzer.
func (o Options) analyzer() (*analysis.PerField, error) {
	fields := make(map[string]analysis.Analyzer)
	for _, f := range o.Schema.Fields() {
		if f.Analyzer == "" {
			continue
		}
		a, err := o.Registry.Lookup(f.Analyzer)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields[f.Name] = a
	}
	for name, a := range o.FieldAnalyzers {
		fields[name] = a
	}
	return analysis.NewPerField(o.Analyzer, fields), nil
}

// OptionsFromConfig maps the index, schema and storage retry sections of
// cfg onto Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	specs := make([]document.FieldSpec, 0, len(cfg.Schema.Fields))
	for _, f := range cfg.Schema.Fields {
		specs = append(specs, document.FieldSpec{
			Name:             f.Name,
			Stored:           f.Stored,
			Indexed:          f.Indexed,
			Tokenized:        f.Tokenized,
			StoreTermVectors: f.StoreTermVectors,
			Analyzer:         f.Analyzer,
		})
	}
	schema, err := document.NewSchema(specs...)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Schema:          schema,
		Registry:        analysis.NewRegistry(),
		MaxBufferedDocs: cfg.Index.MaxBufferedDocs,
		MergeThreshold:  cfg.Index.MaxSegmentsBeforeMerge,
		Compression:     segment.Compression(cfg.Index.Compression),
		Retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Storage.RetryMax,
			InitialDelay: cfg.Storage.RetryBase,
			MaxDelay:     cfg.Storage.RetryMaxDur,
		},
	}
	if cfg.Index.DefaultAnalyzer != "" {
		if opts.Analyzer, err = opts.Registry.Lookup(cfg.Index.DefaultAnalyzer); err != nil {
			return Options{}, err
		}
	}
	return opts, nil
}
