package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/poll"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/store"
)

// ListingStore is the read side of the store.
type ListingStore interface {
	List(ctx context.Context, f store.Filter) ([]domain.Listing, error)
	Get(ctx context.Context, sourceURL string) (domain.Listing, error)
	Count(ctx context.Context) (int, error)
}

// ScrapeRunner triggers and reports collection runs.
type ScrapeRunner interface {
	Start(ctx context.Context, req poll.Request) error
	Status() types.ScrapeStatus
}

type Deps struct {
	Store ListingStore
	DB    *sql.DB // for maintenance endpoints; may be nil

	Hub *events.Hub

	// stores config.Config
	CfgVal *atomic.Value

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Runner ScrapeRunner
	// Server lifetime; runs started over HTTP are cancelled with it.
	BaseCtx context.Context

	// Scheduler's next firing, if one is running
	NextRun func() string

	Logger *slog.Logger
}
