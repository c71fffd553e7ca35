package poll

import (
	"fmt"
	"log/slog"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/engine"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/extract"
	"phdhunt-engine/internal/lock"
	"phdhunt-engine/internal/scrape/euraxess"
	"phdhunt-engine/internal/scrape/findaphd"
	"phdhunt-engine/internal/scrape/scholarshipdb"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/scrape/util"
)

// BuildSources returns an adapter for every enabled source, sharing one
// HTTP client so each site gets its own request spacing.
func BuildSources(cfg config.Config) ([]types.Source, error) {
	ex, err := extract.New(cfg.Classify)
	if err != nil {
		return nil, err
	}
	client := util.NewClient(util.ClientOptions{
		Timeout:    cfg.RequestTimeout(),
		Retries:    cfg.Scrape.MaxRetries,
		Backoff:    cfg.RetryBackoff(),
		MaxBackoff: cfg.RetryMaxBackoff(),
		Delay:      cfg.RequestDelay(),
		UserAgent:  cfg.Scrape.UserAgent,
	})

	var out []types.Source
	for _, name := range cfg.EnabledSources() {
		sc, _ := cfg.Source(name)
		switch name {
		case domain.SourceEuraxess:
			out = append(out, euraxess.New(sc, client, ex))
		case domain.SourceScholarshipDb:
			out = append(out, scholarshipdb.New(sc, client, ex))
		case domain.SourceFindAPhD:
			out = append(out, findaphd.New(sc, client, ex))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return out, nil
}

// EngineOptions maps the scrape section of cfg onto engine options.
func EngineOptions(cfg config.Config, locker lock.Locker, sink events.Sink, log *slog.Logger) engine.Options {
	pages := make(map[domain.SourceName]int, len(domain.KnownSources))
	for _, name := range domain.KnownSources {
		pages[name] = cfg.MaxPages(name)
	}
	return engine.Options{
		Workers:                cfg.Scrape.Workers,
		MaxPages:               pages,
		DefaultMaxPages:        cfg.Scrape.MaxPages,
		MaxConsecutiveFailures: cfg.Scrape.MaxConsecutiveFailures,
		Locker:                 locker,
		Sink:                   sink,
		Logger:                 log,
	}
}
