// Package scholarshipdb scrapes PhD scholarship listings from scholarshipdb.net.
package scholarshipdb

import (
	"context"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/extract"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/scrape/util"
)

const snippetLen = 2000

var nextSelector = `a[rel="next"], ul.pagination li.next a, ul.pagination a:contains("Next"), ul.pagination a:contains("»")`

type Scraper struct {
	feeds  []types.Feed
	client *util.Client
	ex     *extract.Extractor
}

func New(cfg config.SourceConfig, client *util.Client, ex *extract.Extractor) *Scraper {
	return &Scraper{feeds: types.FeedsFrom(cfg), client: client, ex: ex}
}

func (s *Scraper) Name() domain.SourceName { return domain.SourceScholarshipDb }

func (s *Scraper) Feeds() []types.Feed { return s.feeds }

// PageURL maps the 0-based page index to the site's 1-based ?page=, which
// the first page omits.
func PageURL(feedURL string, page int) string {
	if page == 0 {
		return feedURL
	}
	return util.WithQuery(feedURL, "page", strconv.Itoa(page+1))
}

func (s *Scraper) FetchPage(ctx context.Context, feed types.Feed, page int) (types.Page, error) {
	pageURL := PageURL(feed.URL, page)

	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		return types.Page{}, err
	}

	out := types.Page{URL: pageURL, HasMore: doc.Find(nextSelector).Length() > 0}
	// listings are the <li> blocks carrying an <h4> title
	doc.Find("li").FilterFunction(func(_ int, li *goquery.Selection) bool {
		return li.Find("h4").Length() > 0 && li.Find("li").Length() == 0
	}).Each(func(_ int, li *goquery.Selection) {
		out.Listings = append(out.Listings, types.RawListing{Feed: feed, PageURL: pageURL, Node: li})
	})
	return out, nil
}

func (s *Scraper) Parse(raw types.RawListing) (domain.Listing, error) {
	n := raw.Node
	title, href := util.FirstLink(n, "h4 a")
	if title == "" || util.LooksLikeJunkTitle(title) {
		return domain.Listing{}, &types.ParseError{Source: domain.SourceScholarshipDb, URL: raw.PageURL, Reason: "missing title"}
	}
	link := util.ResolveURL(raw.PageURL, href)
	if link == "" {
		return domain.Listing{}, &types.ParseError{Source: domain.SourceScholarshipDb, URL: raw.PageURL, Reason: "missing link"}
	}

	l := domain.Listing{
		SourceURL: link,
		Title:     title,
		Source:    domain.SourceScholarshipDb,
	}

	// second <div>: <a>University</a> | <a class="text-success">Country</a> | <span>age</span>
	if meta := n.ChildrenFiltered("div").Eq(1); meta.Length() > 0 {
		l.Institution = util.CleanText(meta.Find("a").Not(".text-success").First().Text())
		l.Country = util.CleanText(meta.Find("a.text-success").First().Text())
	}
	if l.Country == "" {
		l.Country = util.FirstText(n, "a.text-success")
	}

	desc := util.FirstText(n, "p", "small")
	l.RawSnippet = util.Truncate(desc, snippetLen)
	l.Discipline = s.ex.DetectDiscipline(title + " " + desc)

	s.ex.Enrich(&l, util.BlockText(n))
	return l, nil
}
