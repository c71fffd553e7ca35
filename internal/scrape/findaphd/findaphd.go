// Package findaphd scrapes project listings from findaphd.com. Most of the
// site renders client-side, so it is off by default and selectors fall back
// through several known layouts.
package findaphd

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/extract"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/scrape/util"
)

const snippetLen = 2000

var (
	itemSelectors  = []string{"div.phd-result", "div.card.phd-result", "div[class*='result']"}
	titleSelectors = []string{"h4 a", "a.phd-result__title", "h3 a", "a[href*='/phds/project/']"}
	nextSelector   = `a[rel="next"], .pagination .next a, li.next a, a[aria-label*="Next"]`
)

type Scraper struct {
	feeds  []types.Feed
	client *util.Client
	ex     *extract.Extractor
}

func New(cfg config.SourceConfig, client *util.Client, ex *extract.Extractor) *Scraper {
	return &Scraper{feeds: types.FeedsFrom(cfg), client: client, ex: ex}
}

func (s *Scraper) Name() domain.SourceName { return domain.SourceFindAPhD }

func (s *Scraper) Feeds() []types.Feed { return s.feeds }

// PageURL maps the 0-based page index to the site's 1-based PageNo.
func PageURL(feedURL string, page int) string {
	if page == 0 {
		return feedURL
	}
	return util.WithQuery(feedURL, "PageNo", strconv.Itoa(page+1))
}

func (s *Scraper) FetchPage(ctx context.Context, feed types.Feed, page int) (types.Page, error) {
	pageURL := PageURL(feed.URL, page)

	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		return types.Page{}, err
	}

	out := types.Page{URL: pageURL, HasMore: doc.Find(nextSelector).Length() > 0}
	for _, css := range itemSelectors {
		doc.Find(css).FilterFunction(func(_ int, n *goquery.Selection) bool {
			return n.Find("a[href]").Length() > 0
		}).Each(func(_ int, n *goquery.Selection) {
			out.Listings = append(out.Listings, types.RawListing{Feed: feed, PageURL: pageURL, Node: n})
		})
		if len(out.Listings) > 0 {
			break
		}
	}
	return out, nil
}

func (s *Scraper) Parse(raw types.RawListing) (domain.Listing, error) {
	n := raw.Node
	title, href := util.FirstLink(n, titleSelectors...)
	if title == "" || util.LooksLikeJunkTitle(title) {
		return domain.Listing{}, &types.ParseError{Source: domain.SourceFindAPhD, URL: raw.PageURL, Reason: "missing title"}
	}
	link := util.ResolveURL(raw.PageURL, href)
	if link == "" {
		return domain.Listing{}, &types.ParseError{Source: domain.SourceFindAPhD, URL: raw.PageURL, Reason: "missing link"}
	}

	l := domain.Listing{
		SourceURL:    link,
		Title:        title,
		Source:       domain.SourceFindAPhD,
		Institution:  util.FirstText(n, "a.phd-result__dept-inst", "span.phd-result__dept-inst", "a[href*='/institutions/']"),
		Department:   util.FirstText(n, "a.phd-result__dept", "span.phd-result__dept"),
		Supervisor:   util.FirstText(n, "a[href*='/supervisors/']", "span.phd-result__supervisor"),
		DeadlineText: util.FirstText(n, "span.phd-result__key-info__deadline", "div.phd-result__deadline"),
		Discipline:   util.FirstText(n, "a.phd-result__subject"),
	}

	l.Country = util.FirstAttr(n, "title", "span.phd-result__dept-country", "img.phd-result__flag")
	if l.Country == "" {
		l.Country = util.FirstText(n, "span.phd-result__dept-country")
	}
	l.DeadlineText = strings.TrimSpace(strings.TrimPrefix(l.DeadlineText, "Deadline:"))

	desc := util.FirstText(n, "div.phd-result__description", "div.descFrag")
	l.RawSnippet = util.Truncate(desc, snippetLen)

	s.ex.Enrich(&l, util.BlockText(n))
	return l, nil
}
