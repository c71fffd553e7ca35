// Package euraxess scrapes First Stage Researcher (R1) job offers from the
// EURAXESS portal.
package euraxess

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
	itemSelectors = []string{"div.ecl-content-item__content-block", "article.ecl-content-item"}
	nextSelector  = `a[rel="next"], li.ecl-pagination__item--next a, a.ecl-pagination__link[aria-label*="Next"]`
)

type Scraper struct {
	feeds  []types.Feed
	client *util.Client
	ex     *extract.Extractor
}

func New(cfg config.SourceConfig, client *util.Client, ex *extract.Extractor) *Scraper {
	return &Scraper{feeds: types.FeedsFrom(cfg), client: client, ex: ex}
}

func (s *Scraper) Name() domain.SourceName { return domain.SourceEuraxess }

func (s *Scraper) Feeds() []types.Feed { return s.feeds }

// FetchPage requests one result page. EURAXESS numbers pages from 0, like
// the page index.
func (s *Scraper) FetchPage(ctx context.Context, feed types.Feed, page int) (types.Page, error) {
	pageURL := util.WithQuery(feed.URL, "page", strconv.Itoa(page))

	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		return types.Page{}, err
	}

	out := types.Page{URL: pageURL, HasMore: doc.Find(nextSelector).Length() > 0}
	for _, css := range itemSelectors {
		doc.Find(css).Each(func(_ int, n *goquery.Selection) {
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
	title, href := util.FirstLink(n, "h3.ecl-content-block__title a", "h3 a")
	if title == "" || util.LooksLikeJunkTitle(title) {
		return domain.Listing{}, &types.ParseError{Source: domain.SourceEuraxess, URL: raw.PageURL, Reason: "missing title"}
	}
	link := util.ResolveURL(raw.PageURL, href)
	if link == "" {
		return domain.Listing{}, &types.ParseError{Source: domain.SourceEuraxess, URL: raw.PageURL, Reason: "missing link"}
	}

	l := domain.Listing{
		SourceURL:   link,
		Title:       title,
		Source:      domain.SourceEuraxess,
		Institution: util.FirstText(n, "ul.ecl-content-block__primary-meta-container li a"),
	}

	country, inst := s.workLocation(util.CleanText(n.Find("div.id-Work-Locations").First().Text()))
	l.Country = country
	if l.Institution == "" {
		l.Institution = inst
	}

	var fields []string
	seen := map[string]bool{}
	n.Find("div.id-Research-Field a").Each(func(_ int, a *goquery.Selection) {
		f := util.CleanText(a.Text())
		if f != "" && !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	})
	if len(fields) > 3 {
		fields = fields[:3]
	}
	l.Discipline = strings.Join(fields, ", ")

	dl := n.Find("div.id-Application-Deadline").First()
	l.DeadlineText = util.CleanText(dl.Find("time").First().Text())
	if dt, ok := dl.Find("time").First().Attr("datetime"); ok {
		l.Deadline = extract.ParseDeadline(dt)
	}
	if l.DeadlineText == "" {
		l.DeadlineText = strings.TrimSpace(strings.TrimPrefix(util.CleanText(dl.Text()), "Application Deadline:"))
	}

	blob := util.BlockText(n)
	desc := util.FirstText(n, "div.ecl-content-block__description")
	if desc == "" {
		desc = blob
	}
	l.RawSnippet = util.Truncate(desc, snippetLen)

	s.ex.Enrich(&l, blob)
	return l, nil
}

// workLocation reads "Work Locations: Number of offers: 1, Germany,
// Technical University of Munich, Munich". With several offers only the
// first is used.
func (s *Scraper) workLocation(text string) (country, institution string) {
	text = strings.TrimSpace(strings.TrimPrefix(text, "Work Locations:"))
	if i := strings.Index(text, ";"); i >= 0 {
		text = text[:i]
	}
	if len(text) > 1 {
		if i := strings.Index(text[1:], "Number of offers:"); i >= 0 {
			text = text[:i+1]
		}
	}
	text = strings.Replace(text, "Number of offers:", "", 1)

	var parts []string
	for _, p := range strings.Split(text, ",") {
		if p = util.CleanText(p); p != "" {
			parts = append(parts, p)
		}
	}
	for i, p := range parts {
		if name, _, ok := s.ex.ResolveCountry(p); ok {
			if i+1 < len(parts) {
				institution = parts[i+1]
			}
			return name, institution
		}
	}
	// unknown country: trust the usual column order
	if len(parts) >= 2 {
		country = parts[1]
	}
	if len(parts) >= 3 {
		institution = parts[2]
	}
	return country, institution
}
