// Package engine runs one collection: every enabled source in bounded
// parallel, then a single reconcile and commit into the store.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"phdhunt-engine/internal/dedupe"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/lock"
	"phdhunt-engine/internal/scrape"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/store"
	"phdhunt-engine/internal/telemetry"
)

// Store is the part of the store a run writes through.
type Store interface {
	Lookup(ctx context.Context, keys []string) (map[string]domain.Listing, error)
	Commit(ctx context.Context, plan dedupe.Plan) (store.CommitResult, error)
}

type Options struct {
	Workers                int
	MaxPages               map[domain.SourceName]int
	DefaultMaxPages        int
	MaxConsecutiveFailures int
	Locker                 lock.Locker
	Sink                   events.Sink
	Logger                 *slog.Logger
	Now                    func() time.Time
}

type Engine struct {
	store Store
	opts  Options
	// one commit at a time per process; Locker covers other processes
	commitSem chan struct{}
}

func New(st Store, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.DefaultMaxPages <= 0 {
		opts.DefaultMaxPages = 1
	}
	if opts.Locker == nil {
		opts.Locker = lock.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{store: st, opts: opts, commitSem: make(chan struct{}, 1)}
}

// WithOptions returns an engine with new options that shares the store and
// the commit semaphore with e.
func (e *Engine) WithOptions(opts Options) *Engine {
	n := New(e.store, opts)
	n.commitSem = e.commitSem
	return n
}

func (e *Engine) maxPages(name domain.SourceName) int {
	if n := e.opts.MaxPages[name]; n > 0 {
		return n
	}
	return e.opts.DefaultMaxPages
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.opts.Sink == nil {
		return
	}
	if err := e.opts.Sink.Publish(context.WithoutCancel(ctx), ev); err != nil {
		e.opts.Logger.Warn("[engine] publish event", "type", ev.Type, "err", err)
	}
}

// Run collects from sources and commits the result. The returned error is
// non-nil only when nothing was committed: a *store.CommitError for a failed
// commit, or the context error for a cancelled run. Source failures are
// recorded in the report and never fail the run.
func (e *Engine) Run(ctx context.Context, sources []types.Source) (domain.RunReport, error) {
	log := e.opts.Logger
	rep := domain.RunReport{
		RunID:     uuid.NewString(),
		Status:    domain.RunRunning,
		StartedAt: e.opts.Now().UTC(),
	}

	ctx, span := telemetry.Tracer().Start(ctx, "engine.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", rep.RunID), attribute.Int("sources", len(sources)))

	log.Info("[engine] run started", "run_id", rep.RunID, "sources", len(sources))
	e.publish(ctx, events.New(rep.RunID, events.RunStarted, map[string]any{"sources": len(sources)}))

	results := e.collectAll(ctx, sources)

	var candidates []domain.Listing
	for _, r := range results {
		rep.Sources = append(rep.Sources, r.Report)
		candidates = append(candidates, r.Listings...)
		if r.Err != nil {
			rep.Errors = append(rep.Errors, r.Err.Error())
		}
	}

	if err := ctx.Err(); err != nil {
		return e.finish(ctx, rep, domain.RunCancelled, err), err
	}

	res, plan, err := e.commit(ctx, candidates)
	if err != nil {
		if ctx.Err() != nil {
			return e.finish(ctx, rep, domain.RunCancelled, err), ctx.Err()
		}
		span.SetStatus(codes.Error, err.Error())
		return e.finish(ctx, rep, domain.RunFailed, err), err
	}

	rep.Inserted, rep.Updated = res.Inserted, res.Updated
	creditSources(&rep, plan)

	status := domain.RunCompleted
	for _, s := range rep.Sources {
		if s.Failed {
			status = domain.RunCompletedWithErrors
			break
		}
	}
	span.SetAttributes(attribute.Int("inserted", rep.Inserted), attribute.Int("updated", rep.Updated))
	return e.finish(ctx, rep, status, nil), nil
}

func (e *Engine) collectAll(ctx context.Context, sources []types.Source) []scrape.Result {
	results := make([]scrape.Result, len(sources))

	var g errgroup.Group
	g.SetLimit(min(e.opts.Workers, max(len(sources), 1)))

	for i, src := range sources {
		g.Go(func() error {
			results[i] = scrape.Collect(ctx, src, scrape.Options{
				MaxPages:               e.maxPages(src.Name()),
				MaxConsecutiveFailures: e.opts.MaxConsecutiveFailures,
				Logger:                 e.opts.Logger,
			})
			r := results[i].Report
			e.opts.Logger.Info("["+string(src.Name())+"] done",
				"listings", r.Fetched, "pages", r.PagesFetched, "failed_pages", r.FailedPages, "failed", r.Failed)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// commit is the single-writer section: snapshot, reconcile and write under
// both the in-process semaphore and the cross-process lock.
func (e *Engine) commit(ctx context.Context, candidates []domain.Listing) (store.CommitResult, dedupe.Plan, error) {
	select {
	case e.commitSem <- struct{}{}:
		defer func() { <-e.commitSem }()
	case <-ctx.Done():
		return store.CommitResult{}, dedupe.Plan{}, ctx.Err()
	}

	release, err := e.opts.Locker.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return store.CommitResult{}, dedupe.Plan{}, ctx.Err()
		}
		return store.CommitResult{}, dedupe.Plan{}, &store.CommitError{Op: "lock", Err: err}
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			e.opts.Logger.Warn("[engine] release commit lock", "err", err)
		}
	}()

	existing, err := e.store.Lookup(ctx, dedupe.Keys(candidates))
	if err != nil {
		return store.CommitResult{}, dedupe.Plan{}, &store.CommitError{Op: "snapshot", Err: err}
	}

	plan := dedupe.Reconcile(candidates, existing, e.opts.Now().UTC())

	if err := ctx.Err(); err != nil {
		return store.CommitResult{}, plan, err
	}
	res, err := e.store.Commit(ctx, plan)
	if err != nil {
		var ce *store.CommitError
		if !errors.As(err, &ce) {
			err = &store.CommitError{Op: "write", Err: err}
		}
		return store.CommitResult{}, plan, err
	}
	return res, plan, nil
}

// creditSources credits each insert, update and rejection to the source that
// produced the winning candidate.
func creditSources(rep *domain.RunReport, plan dedupe.Plan) {
	idx := make(map[domain.SourceName]int, len(rep.Sources))
	for i, s := range rep.Sources {
		idx[s.Source] = i
	}
	credit := func(src domain.SourceName, f func(*domain.SourceReport)) {
		if i, ok := idx[src]; ok {
			f(&rep.Sources[i])
		}
	}
	for _, l := range plan.Insert {
		credit(l.Source, func(s *domain.SourceReport) { s.New++ })
	}
	for _, l := range plan.Update {
		credit(l.Source, func(s *domain.SourceReport) { s.Updated++ })
	}
	for _, r := range plan.Invalid {
		credit(r.Listing.Source, func(s *domain.SourceReport) { s.Invalid++ })
	}
}

func (e *Engine) finish(ctx context.Context, rep domain.RunReport, status domain.RunStatus, err error) domain.RunReport {
	rep.Status = status
	rep.FinishedAt = e.opts.Now().UTC()
	rep.Duration = rep.FinishedAt.Sub(rep.StartedAt)
	if err != nil {
		rep.Fatal = err.Error()
	}

	for _, s := range rep.Sources {
		e.publish(ctx, events.New(rep.RunID, events.SourceDone, s))
	}
	e.publish(ctx, events.New(rep.RunID, events.RunFinished, rep))

	attrs := []any{"run_id", rep.RunID, "status", rep.Status, "fetched", rep.Fetched(),
		"inserted", rep.Inserted, "updated", rep.Updated, "took", rep.Duration.Round(time.Millisecond)}
	switch status {
	case domain.RunFailed:
		e.opts.Logger.Error("[engine] run failed", append(attrs, "err", err)...)
	case domain.RunCancelled:
		e.opts.Logger.Warn("[engine] run cancelled", attrs...)
	default:
		e.opts.Logger.Info("[engine] run finished", attrs...)
	}
	return rep
}
