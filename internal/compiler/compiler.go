package compiler

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tdq/internal/generator"
	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/ir"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

// Compiler lowers tenant query documents into engine queries.
//
// A Compiler holds no mutable state and is safe for concurrent use.
type Compiler struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(c *Compiler) {
		c.cfg = cfg
	}
}

// WithClock sets the source of "now" used to resolve relative intervals.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		c.now = now
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		cfg:    DefaultConfig(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the compiler's configuration.
func (c *Compiler) Config() Config {
	return c.cfg
}

func (c *Compiler) generatorOptions() generator.Options {
	return generator.Options{UserField: c.cfg.UserField, Now: c.now}
}

// Precompiled is a document that went through Precompile. It can only be
// produced by Precompile, so passing one to CompileToRunnable cannot skip
// the tenant scoping step.
type Precompiled struct {
	// SourceQueryType is the query type before generator expansion, which
	// keeps funnel, retention and experiment visible to callers.
	SourceQueryType query.QueryType

	query *query.CustomQuery
	hash  string
}

// Query returns a copy of the precompiled document.
func (p *Precompiled) Query() *query.CustomQuery {
	return p.query.Clone()
}

// Hash is the content hash of the precompiled document. Relative intervals
// are hashed unresolved, so the hash does not depend on the clock, with one
// exception: retention expansion picks its months against the clock, and a
// relative retention query hashes differently once the calendar month
// window moves.
func (p *Precompiled) Hash() string {
	return p.hash
}

// MarshalJSON encodes the precompiled document canonically.
func (p *Precompiled) MarshalJSON() ([]byte, error) {
	return ir.MarshalCanonical(p.query)
}

// Precompile validates q, expands the virtual query types, lowers
// convenience aggregators, applies the base-filter policy and clears the
// tenant-only fields. q is not modified.
func (c *Compiler) Precompile(q *query.CustomQuery, organizationAppIDs []uuid.UUID, isSuperOrg bool) (*Precompiled, error) {
	if q == nil {
		return nil, qerr.KeyMissing("query", "no query document")
	}
	out, err := c.lower(q)
	if err != nil {
		return nil, err
	}

	policy := basePolicy(q)
	scope, err := c.baseFilter(policy, q, organizationAppIDs, isSuperOrg)
	if err != nil {
		return nil, err
	}
	out.Filter = queryir.Normalize(queryir.AllOf(out.Filter, scope))

	if policy != query.BaseFiltersNoFilter {
		out.DataSource = c.cfg.DataSource
		out.Context = out.Context.Merge(query.QueryContext{
			Timeout:          queryir.Ptr(c.cfg.ContextTimeout),
			SkipEmptyBuckets: queryir.Ptr(c.cfg.SkipEmptyBuckets),
		})
	}

	out.ClearExtensionFields()

	hash, err := ir.Hash(ir.DomainPrecompiled, out)
	if err != nil {
		return nil, err
	}

	result := queryir.Validate(out.Filter, out.Aggregations, out.PostAggregations)
	for _, w := range result.Warnings {
		c.logger.Warn("precompiled query", "warning", w, "hash", hash)
	}
	c.logger.Debug("precompiled",
		"query_type", q.QueryType,
		"base_filters", policy,
		"hash", hash,
	)

	return &Precompiled{SourceQueryType: q.QueryType, query: out, hash: hash}, nil
}

// Check runs the structural steps of Precompile without tenant scoping and
// validates the lowered aggregation trees. It needs no organization, so it
// suits linting documents before they are stored.
func (c *Compiler) Check(q *query.CustomQuery) (queryir.ValidationResult, error) {
	if q == nil {
		return queryir.ValidationResult{}, qerr.KeyMissing("query", "no query document")
	}
	out, err := c.lower(q)
	if err != nil {
		return queryir.ValidationResult{}, err
	}
	return queryir.Validate(out.Filter, out.Aggregations, out.PostAggregations), nil
}

// lower checks intervals, expands virtual types, lowers convenience
// aggregators and checks topN requirements. q is not modified.
func (c *Compiler) lower(q *query.CustomQuery) (*query.CustomQuery, error) {
	if err := checkIntervals(q); err != nil {
		return nil, err
	}

	out, err := c.expand(q)
	if err != nil {
		return nil, err
	}

	out.Aggregations, out.PostAggregations = generator.LowerConvenience(
		out.Aggregations, out.PostAggregations, c.generatorOptions())

	if out.QueryType == query.QueryTypeTopN {
		if err := checkTopN(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// expand replaces a virtual query with its generator output. Engine query
// types come back as a copy.
func (c *Compiler) expand(q *query.CustomQuery) (*query.CustomQuery, error) {
	opts := c.generatorOptions()
	switch q.QueryType {
	case query.QueryTypeFunnel:
		return generator.Funnel(q, opts)
	case query.QueryTypeRetention:
		return generator.Retention(q, opts)
	case query.QueryTypeExperiment:
		return generator.Experiment(q, opts)
	default:
		return q.Clone(), nil
	}
}

// CompileToRunnable resolves the relative intervals of a precompiled
// document against the compiler clock. The result embeds the current time
// and should be produced right before the query is sent.
func (c *Compiler) CompileToRunnable(p *Precompiled) (*query.CustomQuery, error) {
	if p == nil || p.query == nil {
		return nil, qerr.NotAllowed("precompilation steps incomplete: no precompiled query")
	}
	return c.CompileToRunnableQuery(p.query)
}

// CompileToRunnableQuery is CompileToRunnable for a document whose
// precompilation is checked at runtime. It fails with NOT_ALLOWED while any
// tenant-only field is still set or the query type is virtual.
func (c *Compiler) CompileToRunnableQuery(q *query.CustomQuery) (*query.CustomQuery, error) {
	if q == nil {
		return nil, qerr.KeyMissing("query", "no query document")
	}
	if set := q.ExtensionFieldsSet(); len(set) > 0 {
		return nil, qerr.NotAllowed("precompilation steps incomplete: %s still set", strings.Join(set, ", "))
	}
	if q.QueryType.IsVirtual() {
		return nil, qerr.NotAllowed("precompilation steps incomplete: queryType %s was not expanded", q.QueryType)
	}

	out := q.Clone()
	if len(out.RelativeIntervals) > 0 {
		now := c.now()
		out.Intervals = interval.ResolveAll(out.RelativeIntervals, now)
		out.RelativeIntervals = nil
		c.logger.Debug("resolved relative intervals", "now", interval.FormatTime(now), "count", len(out.Intervals))
	}
	if len(out.Intervals) == 0 {
		return nil, qerr.KeyMissing("intervals", "runnable queries need intervals")
	}
	return out, nil
}

// Compile runs Precompile and CompileToRunnable.
func (c *Compiler) Compile(q *query.CustomQuery, organizationAppIDs []uuid.UUID, isSuperOrg bool) (*query.CustomQuery, error) {
	p, err := c.Precompile(q, organizationAppIDs, isSuperOrg)
	if err != nil {
		return nil, err
	}
	return c.CompileToRunnable(p)
}

// CompileJSON decodes a document, compiles it and returns canonical JSON.
func (c *Compiler) CompileJSON(data []byte, organizationAppIDs []uuid.UUID, isSuperOrg bool) (json.RawMessage, error) {
	q, err := query.Decode(data)
	if err != nil {
		return nil, err
	}
	out, err := c.Compile(q, organizationAppIDs, isSuperOrg)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(out)
}

// checkIntervals requires exactly one of intervals and relativeIntervals.
func checkIntervals(q *query.CustomQuery) error {
	hasAbsolute := len(q.Intervals) > 0
	hasRelative := len(q.RelativeIntervals) > 0
	switch {
	case !hasAbsolute && !hasRelative:
		return qerr.KeyMissing("intervals", "either intervals or relativeIntervals must be set")
	case hasAbsolute && hasRelative:
		return qerr.KeyMissing("intervals", "only one of intervals and relativeIntervals may be set")
	}
	return nil
}

func checkTopN(q *query.CustomQuery) error {
	switch {
	case q.Threshold == nil:
		return qerr.KeyMissing("threshold", "topN queries need a threshold")
	case q.Metric == nil:
		return qerr.KeyMissing("metric", "topN queries need a metric")
	case q.Dimension == nil:
		return qerr.KeyMissing("dimension", "topN queries need a dimension")
	}
	return nil
}
