package types

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"phdhunt-engine/internal/domain"
)

// Feed is one listing start URL of a source. ScholarshipDb and FindAPhD
// have one feed per region; EURAXESS has a single feed.
type Feed struct {
	Label  string
	Region domain.Region
	URL    string
}

// RawListing is one listing block cut out of a fetched page, not yet parsed.
type RawListing struct {
	Feed    Feed
	PageURL string
	Node    *goquery.Selection
}

type Page struct {
	URL      string
	Listings []RawListing
	HasMore  bool
}

// Source is a site adapter. FetchPage takes a 0-based page index and maps it
// to the site's own numbering. Parse must not touch the network.
type Source interface {
	Name() domain.SourceName
	Feeds() []Feed
	FetchPage(ctx context.Context, feed Feed, page int) (Page, error)
	Parse(raw RawListing) (domain.Listing, error)
}

type ScrapeStatus struct {
	LastRunAt    string           `json:"last_run_at"`
	LastOkAt     string           `json:"last_ok_at"`
	LastError    string           `json:"last_error"`
	LastRunID    string           `json:"last_run_id"`
	LastStatus   domain.RunStatus `json:"last_status"`
	LastInserted int              `json:"last_inserted"`
	LastUpdated  int              `json:"last_updated"`
	Running      bool             `json:"running"`
}
