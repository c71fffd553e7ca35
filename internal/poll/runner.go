package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/engine"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/lock"
	"phdhunt-engine/internal/scrape/types"
)

var ErrRunInProgress = errors.New("a collection run is already in progress")

// Request narrows one run. Zero values keep the configured settings.
type Request struct {
	Sources  []string `json:"sources,omitempty"`
	MaxPages int      `json:"max_pages,omitempty"`
}

// Overlay is the sparse config this request lays over the loaded one.
func (r Request) Overlay() config.Config {
	var o config.Config
	o.Sources.Enabled = r.Sources
	if r.MaxPages > 0 {
		o.Scrape.MaxPages = r.MaxPages
		o.Sources.Euraxess.MaxPages = r.MaxPages
		o.Sources.ScholarshipDb.MaxPages = r.MaxPages
		o.Sources.FindAPhD.MaxPages = r.MaxPages
	}
	return o
}

// Runner owns the engine for a long-lived process (serve) and the status the
// HTTP API reports. It rejects a trigger while its own run is in flight.
type Runner struct {
	engine  *engine.Engine
	cfgVal  *atomic.Value // config.Config
	locker  lock.Locker
	sink    events.Sink
	log     *slog.Logger
	running atomic.Bool
	status  atomic.Value // types.ScrapeStatus
	wg      sync.WaitGroup

	// BuildSources is replaceable for tests.
	BuildSources func(config.Config) ([]types.Source, error)
}

func NewRunner(eng *engine.Engine, cfgVal *atomic.Value, locker lock.Locker, sink events.Sink, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{engine: eng, cfgVal: cfgVal, locker: locker, sink: sink, log: log, BuildSources: BuildSources}
	r.status.Store(types.ScrapeStatus{})
	return r
}

func (r *Runner) Status() types.ScrapeStatus {
	return r.status.Load().(types.ScrapeStatus)
}

// Run performs one collection and blocks until it ends.
func (r *Runner) Run(ctx context.Context, req Request) (domain.RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return domain.RunReport{}, ErrRunInProgress
	}
	r.wg.Add(1)
	defer r.wg.Done()
	defer r.running.Store(false)
	return r.run(ctx, req)
}

// Start launches a collection in the background and returns at once. The
// run stops when ctx is done, so ctx should live as long as the process.
func (r *Runner) Start(ctx context.Context, req Request) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		if _, err := r.run(ctx, req); err != nil {
			r.log.Error("[poll] run failed", "err", err)
		}
	}()
	return nil
}

// Wait blocks until no run is in flight. Call it before closing the store.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) run(ctx context.Context, req Request) (domain.RunReport, error) {
	st := r.Status()
	st.Running = true
	st.LastRunAt = time.Now().Format(time.RFC3339)
	r.status.Store(st)

	rep, err := r.collect(ctx, req)

	st = r.Status()
	st.Running = false
	st.LastRunID = rep.RunID
	st.LastStatus = rep.Status
	st.LastInserted = rep.Inserted
	st.LastUpdated = rep.Updated
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
		st.LastOkAt = time.Now().Format(time.RFC3339)
	}
	r.status.Store(st)
	return rep, err
}

func (r *Runner) collect(ctx context.Context, req Request) (domain.RunReport, error) {
	cfg := r.cfgVal.Load().(config.Config)
	if err := config.Overlay(&cfg, req.Overlay()); err != nil {
		return domain.RunReport{Status: domain.RunFailed}, err
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	if err := v.Err(); err != nil {
		return domain.RunReport{Status: domain.RunFailed}, err
	}

	sources, err := r.BuildSources(cfg)
	if err != nil {
		return domain.RunReport{Status: domain.RunFailed}, err
	}
	eng := r.engine.WithOptions(EngineOptions(cfg, r.locker, r.sink, r.log))
	return eng.Run(ctx, sources)
}
