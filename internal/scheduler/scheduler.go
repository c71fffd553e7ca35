package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// Scheduler runs a task once a day at a fixed wall-clock time.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// DailySpec turns "HH:MM" into a five-field cron spec.
func DailySpec(timeOfDay string) (string, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(timeOfDay), ":")
	if !ok {
		return "", fmt.Errorf("time of day %q: want HH:MM", timeOfDay)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("time of day %q: bad hour", timeOfDay)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("time of day %q: bad minute", timeOfDay)
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// Daily schedules task at timeOfDay in timezone ("Local", "UTC" or an IANA
// name). Overlapping firings are skipped. Call Start to begin.
func Daily(ctx context.Context, timeOfDay, timezone, name string, task Task, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	spec, err := DailySpec(timeOfDay)
	if err != nil {
		return nil, err
	}
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("timezone %q: %w", timezone, err)
		}
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() {
		log.Info("[" + name + "] scheduled run")
		if err := task(ctx); err != nil {
			log.Error("["+name+"] scheduled run failed", "err", err)
		}
	}); err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, log: log}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Next is the next firing time, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops future firings and waits for a running task to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
