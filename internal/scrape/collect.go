package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/telemetry"
)

type Options struct {
	MaxPages               int
	MaxConsecutiveFailures int
	Logger                 *slog.Logger
}

// Result is everything one source produced in a run.
type Result struct {
	Source   domain.SourceName
	Listings []domain.Listing
	Report   domain.SourceReport
	Err      error // *types.SourceExhaustedError when every feed failed
}

// Collect walks every feed of src through the pagination state machine and
// parses the listings it finds. It never fails as a whole: failed pages,
// parse errors and failed feeds end up in the report.
func Collect(ctx context.Context, src types.Source, opts Options) Result {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 1
	}

	ctx, span := telemetry.Tracer().Start(ctx, "collect "+string(src.Name()))
	defer span.End()

	res := Result{Source: src.Name(), Report: domain.SourceReport{Source: src.Name()}}
	failedFeeds := 0

	for _, feed := range src.Feeds() {
		if ctx.Err() != nil {
			break
		}
		listings, fr, errs := collectFeed(ctx, src, feed, opts, log)

		res.Listings = append(res.Listings, listings...)
		res.Report.Feeds = append(res.Report.Feeds, fr)
		res.Report.PagesFetched += fr.PagesFetched
		res.Report.FailedPages += fr.FailedPages
		res.Report.ParseErrors += fr.ParseErrors
		res.Report.Errors = append(res.Report.Errors, errs...)
		if fr.State == domain.StateFailed {
			failedFeeds++
		}
	}
	res.Report.Fetched = len(res.Listings)

	if n := len(res.Report.Feeds); n > 0 && failedFeeds == n {
		res.Report.Failed = true
		res.Err = &types.SourceExhaustedError{Source: src.Name(), Feeds: n, FailedPages: res.Report.FailedPages}
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.SetAttributes(
		attribute.Int("listings", res.Report.Fetched),
		attribute.Int("failed_pages", res.Report.FailedPages),
	)
	return res
}

func collectFeed(ctx context.Context, src types.Source, feed types.Feed, opts Options, log *slog.Logger) ([]domain.Listing, domain.FeedReport, []string) {
	name := src.Name()
	fr := domain.FeedReport{Label: feed.Label, State: domain.StateFetching}
	var out []domain.Listing
	var errs []string
	consecutive := 0

	for page := 0; page < opts.MaxPages; page++ {
		if ctx.Err() != nil {
			return out, fr, errs
		}

		p, err := src.FetchPage(ctx, feed, page)
		if err != nil {
			if ctx.Err() != nil {
				return out, fr, errs
			}
			fr.FailedPages++
			consecutive++
			errs = append(errs, fmt.Sprintf("%s page %d: %v", feed.Label, page, err))
			temporary := true
			var fe *types.FetchError
			if errors.As(err, &fe) {
				temporary = fe.Temporary()
			}
			log.Warn("["+string(name)+"] page failed", "feed", feed.Label, "page", page, "temporary", temporary, "err", err)

			if consecutive >= opts.MaxConsecutiveFailures {
				fr.State = domain.StateFailed
				return out, fr, errs
			}
			// skip it and try the next page
			fr.State = domain.StateHasMore
			continue
		}
		consecutive = 0
		fr.PagesFetched++

		for _, raw := range p.Listings {
			l, err := safeParse(src, raw)
			if err != nil {
				fr.ParseErrors++
				log.Debug("["+string(name)+"] listing dropped", "feed", feed.Label, "page", page, "err", err)
				continue
			}
			if l.Source == "" {
				l.Source = name
			}
			if l.Region == "" {
				l.Region = feed.Region
			}
			out = append(out, l)
		}
		fr.Listings = len(out)

		log.Info("["+string(name)+"] page", "feed", feed.Label, "page", page, "listings", len(p.Listings), "has_more", p.HasMore)

		if len(p.Listings) == 0 || !p.HasMore {
			fr.State = domain.StateExhausted
			return out, fr, errs
		}
		fr.State = domain.StateHasMore
	}

	// capped by MaxPages; a feed that never produced a page counts as failed
	if fr.PagesFetched == 0 && fr.FailedPages > 0 {
		fr.State = domain.StateFailed
	}
	return out, fr, errs
}

// safeParse keeps one malformed listing (including one that panics the
// parser) from taking the page down with it.
func safeParse(src types.Source, raw types.RawListing) (l domain.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &types.ParseError{Source: src.Name(), URL: raw.PageURL, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	l, err = src.Parse(raw)
	if err != nil {
		var pe *types.ParseError
		if !errors.As(err, &pe) {
			err = &types.ParseError{Source: src.Name(), URL: raw.PageURL, Reason: err.Error()}
		}
	}
	return l, err
}
