// Package engine walks a stream graph, fetches every definition's records
// page by page, and hands transformed records to a sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/coda-tap/pkg/schema"
	"github.com/Sternrassler/coda-tap/pkg/sink"
	"github.com/Sternrassler/coda-tap/pkg/stream"
	"github.com/Sternrassler/coda-tap/pkg/transform"
)

// Fetcher yields every record of a resource path. *pagination.Fetcher
// satisfies it.
type Fetcher interface {
	Records(ctx context.Context, path string) iter.Seq2[map[string]any, error]
}

// SchemaSource resolves an entity into a patched schema. *schema.Resolver
// satisfies it.
type SchemaSource interface {
	Resolve(entityRef string, patches ...schema.Patch) (map[string]any, error)
}

// Config controls a run.
type Config struct {
	// Selected names the streams to emit. Empty selects every stream.
	// Ancestors of selected streams are fetched but not emitted.
	Selected []string

	// Parallel bounds how many root subtrees are traversed concurrently.
	// Values below 2 traverse sequentially.
	Parallel int

	// StrictRecords turns record transformation failures into fatal errors.
	StrictRecords bool
}

// Orchestrator drives one extraction run over a Graph.
type Orchestrator struct {
	graph   *stream.Graph
	schemas SchemaSource
	fetcher Fetcher
	sink    sink.Sink
	config  Config

	// active holds the definitions that are fetched, emit the subset
	// whose records and schemas are published.
	active map[int]bool
	emit   map[int]bool

	logger zerolog.Logger
}

// New validates the selection against graph and returns an Orchestrator.
func New(graph *stream.Graph, schemas SchemaSource, fetcher Fetcher, out sink.Sink, cfg Config) (*Orchestrator, error) {
	if graph == nil || schemas == nil || fetcher == nil || out == nil {
		return nil, errors.New("engine: graph, schema source, fetcher and sink are required")
	}

	o := &Orchestrator{
		graph:   graph,
		schemas: schemas,
		fetcher: fetcher,
		sink:    out,
		config:  cfg,
		emit:    make(map[int]bool),
		logger:  log.With().Str("component", "engine").Logger(),
	}

	if len(cfg.Selected) == 0 {
		o.active = make(map[int]bool, graph.Len())
		for i := 0; i < graph.Len(); i++ {
			o.active[i] = true
			o.emit[i] = true
		}
		return o, nil
	}

	active, err := graph.Closure(cfg.Selected...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	o.active = active
	for _, name := range cfg.Selected {
		i, _ := graph.Index(name)
		o.emit[i] = true
	}
	return o, nil
}

// SchemaPatches returns the patches applied to def's resolved schema:
// a string property per inherited Context key, the typed variants of each
// polymorphic field, the definition's description, then its own patches.
func (o *Orchestrator) SchemaPatches(i int) []schema.Patch {
	def := o.graph.Definition(i)

	var patches []schema.Patch
	for _, key := range o.graph.GuaranteedKeys(i) {
		patches = append(patches, schema.AddProperty{
			Property: key,
			Schema:   map[string]any{"type": "string"},
		})
	}
	for _, field := range def.Polymorphic {
		patches = append(patches, schema.Flatten(field)...)
	}
	if def.Description != "" {
		patches = append(patches, schema.SetDescription{Description: def.Description})
	}
	return append(patches, def.SchemaPatches...)
}

// resolveAll resolves every active definition in declaration order.
func (o *Orchestrator) resolveAll() (map[int]map[string]any, error) {
	out := make(map[int]map[string]any, len(o.active))
	for i := 0; i < o.graph.Len(); i++ {
		if !o.active[i] {
			continue
		}
		def := o.graph.Definition(i)
		s, err := o.schemas.Resolve(def.EntityRef, o.SchemaPatches(i)...)
		if err != nil {
			return nil, &RunError{Stream: def.Name, Err: err}
		}
		out[i] = s
	}
	return out, nil
}

// Discover resolves every active definition and publishes the schemas of
// the emitted ones to catalog, without fetching any record.
func (o *Orchestrator) Discover(catalog sink.Catalog) error {
	schemas, err := o.resolveAll()
	if err != nil {
		return err
	}
	return o.publish(catalog, schemas)
}

func (o *Orchestrator) publish(catalog sink.Catalog, schemas map[int]map[string]any) error {
	var err error
	o.graph.Walk(func(i int) {
		if err != nil || !o.emit[i] {
			return
		}
		def := o.graph.Definition(i)
		if perr := catalog.PublishSchema(def.Name, schemas[i], o.graph.KeyProperties(i)); perr != nil {
			err = &RunError{Stream: def.Name, Err: fmt.Errorf("publish schema: %w", perr)}
		}
	})
	return err
}

// Run resolves every schema, publishes them, then traverses the graph
// depth-first. Resolution failures end the run before any request for
// records is made.
//
// The returned Summary is never nil. A non-nil error is a *RunError, or
// wraps the context's error when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	started := time.Now()
	st := newRunState(runID, started)
	logger := o.logger.With().Str("run_id", runID).Logger()

	finish := func(err error) (*Summary, error) {
		st.summary.Duration = time.Since(started)
		outcome := "success"
		switch {
		case err != nil:
			outcome = "failed"
		case len(st.summary.Failures) > 0:
			outcome = "partial"
		}
		runDuration.WithLabelValues(outcome).Observe(st.summary.Duration.Seconds())

		ev := logger.Info()
		if err != nil {
			ev = logger.Error().Err(err)
		}
		ev.Int("records", st.summary.Emitted()).
			Int("failures", len(st.summary.Failures)).
			Dur("duration", st.summary.Duration).
			Str("outcome", outcome).
			Msg("Run finished")
		return st.summary, err
	}

	schemas, err := o.resolveAll()
	if err != nil {
		return finish(err)
	}
	if err := o.publish(o.sink, schemas); err != nil {
		return finish(err)
	}

	var roots []int
	for _, r := range o.graph.Roots() {
		if o.active[r] {
			roots = append(roots, r)
		}
	}

	logger.Info().Int("roots", len(roots)).Int("parallel", o.config.Parallel).Msg("Run started")

	if o.config.Parallel < 2 {
		for _, r := range roots {
			if err := o.fetch(ctx, r, stream.Context{}, st, logger); err != nil {
				return finish(err)
			}
		}
		return finish(nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Parallel)
	for _, r := range roots {
		g.Go(func() error {
			return o.fetch(gctx, r, stream.Context{}, st, logger)
		})
	}
	// The first fatal error cancels the remaining subtrees.
	return finish(g.Wait())
}

// fetch drains definition i under pctx and recurses into its children for
// each record. It returns nil when a failure was contained to this subtree.
func (o *Orchestrator) fetch(ctx context.Context, i int, pctx stream.Context, st *runState, logger zerolog.Logger) error {
	def := o.graph.Definition(i)

	path, err := def.Path(pctx)
	if err != nil {
		return &RunError{Stream: def.Name, Err: err, PartialOutput: st.anyEmitted()}
	}

	logger = logger.With().Str("stream", def.Name).Str("path", path).Logger()
	logger.Debug().Str("context", pctx.String()).Msg("Fetching stream")
	st.fetched(def.Name)

	var children []int
	for _, c := range o.graph.Children(i) {
		if o.active[c] {
			children = append(children, c)
		}
	}

	n := 0
	for raw, err := range o.fetcher.Records(ctx, path) {
		if err != nil {
			return o.fetchFailed(ctx, def.Name, path, err, st, logger)
		}

		rec, keep, err := transform.Apply(def, raw, pctx)
		var cctx stream.Context
		if err == nil && keep && len(children) > 0 {
			cctx, err = def.ChildContext(raw, pctx)
			if err != nil {
				err = &transform.Error{Stream: def.Name, Err: err}
			}
		}
		if err != nil {
			if o.config.StrictRecords {
				return &RunError{Stream: def.Name, Err: err, PartialOutput: st.anyEmitted()}
			}
			logger.Warn().Err(err).Msg("Dropping record")
			st.dropped(def.Name)
			continue
		}
		if !keep {
			st.dropped(def.Name)
			continue
		}

		if o.emit[i] {
			if err := o.sink.WriteRecord(def.Name, rec); err != nil {
				return &RunError{Stream: def.Name, Err: fmt.Errorf("write record: %w", err), PartialOutput: st.anyEmitted()}
			}
			st.emitted(def.Name)
		}
		n++

		for _, c := range children {
			if err := o.fetch(ctx, c, cctx, st, logger); err != nil {
				return err
			}
		}
	}

	logger.Debug().Int("records", n).Msg("Stream drained")
	return nil
}

func (o *Orchestrator) fetchFailed(ctx context.Context, name, path string, err error, st *runState, logger zerolog.Logger) error {
	class := errorClass(err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("stream %s: %w", name, ctxErr)
	}

	if !contained(err) {
		return &RunError{Stream: name, Err: err, PartialOutput: st.anyEmitted()}
	}

	partial := st.partial(name)
	streamFailuresTotal.WithLabelValues(name, class).Inc()
	st.fail(StreamFailure{Stream: name, Path: path, Err: err, PartialOutput: partial})
	logger.Warn().
		Err(err).
		Str("error_class", class).
		Bool("partial_output", partial).
		Msg("Stream failed, skipping subtree")
	return nil
}
