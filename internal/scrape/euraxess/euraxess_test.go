package euraxess

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/extract"
	"phdhunt-engine/internal/scrape"
	"phdhunt-engine/internal/scrape/util"
)

const page0 = `<html><body>
<div class="ecl-content-item__content-block">
  <ul class="ecl-content-block__primary-meta-container">
    <li><a href="/partnering/organisations/profile/1">Technical University of Munich</a></li>
    <li>Posted on: 1 March 2026</li>
  </ul>
  <h3 class="ecl-content-block__title"><a href="/jobs/412345?utm_source=rss"><span>PhD Position in Quantum Machine Learning</span></a></h3>
  <div class="ecl-content-block__description">Fully funded 4-year position under the supervision of Prof. Anna Weber.</div>
  <div class="id-Work-Locations"><div>Work Locations:</div><div>Number of offers: 1, Germany, Technical University of Munich, Munich</div></div>
  <div class="id-Research-Field"><div>Research Field:</div><a href="#">Physics</a> <a href="#">Computer science</a> <a href="#">Physics</a></div>
  <div class="id-Application-Deadline"><div>Application Deadline:</div><time datetime="2026-04-30T23:59:00Z">30 Apr 2026 - 23:59 (Europe/Brussels)</time></div>
</div>
<div class="ecl-content-item__content-block">
  <h3 class="ecl-content-block__title"><a href="https://euraxess.ec.europa.eu/jobs/400001">Doctoral candidate in marine ecology (CSC scholarship holders)</a></h3>
  <div class="ecl-content-block__description">Candidates funded by the China Scholarship Council are welcome. Fully funded.</div>
  <div class="id-Work-Locations">Work Locations: Number of offers: 1, Netherlands, Wageningen University, Wageningen</div>
</div>
<div class="ecl-content-item__content-block"><p>Sponsored</p></div>
<nav><ul><li class="ecl-pagination__item ecl-pagination__item--next"><a href="?page=1">Next</a></li></ul></nav>
</body></html>`

const page1 = `<html><body>
<div class="ecl-content-item__content-block">
  <h3 class="ecl-content-block__title"><a href="/jobs/412399">Early Stage Researcher in Catalysis</a></h3>
  <div class="id-Work-Locations">Work Locations: Number of offers: 2, Spain, Universitat de Barcelona, Barcelona</div>
</div>
</body></html>`

type fixtureServer struct {
	*httptest.Server
	mu    sync.Mutex
	pages []string
}

func newFixtureServer(t *testing.T) *fixtureServer {
	fs := &fixtureServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query().Get("page")
		fs.mu.Lock()
		fs.pages = append(fs.pages, p)
		fs.mu.Unlock()
		switch p {
		case "0":
			_, _ = w.Write([]byte(page0))
		case "1":
			_, _ = w.Write([]byte(page1))
		default:
			_, _ = w.Write([]byte(`<html><body></body></html>`))
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newScraper(t *testing.T, base string) *Scraper {
	t.Helper()
	ex, err := extract.New(config.Default().Classify)
	require.NoError(t, err)
	client := util.NewClient(util.ClientOptions{Timeout: 2 * time.Second, UserAgent: "test"})
	cfg := config.SourceConfig{Feeds: []config.Feed{{
		Region: "europe",
		URL:    base + "/jobs/search?keywords=&research_profiles=First+Stage+Researcher+%28R1%29",
	}}}
	return New(cfg, client, ex)
}

func TestFetchAndParsePage(t *testing.T) {
	srv := newFixtureServer(t)
	s := newScraper(t, srv.URL)
	require.Len(t, s.Feeds(), 1)

	p, err := s.FetchPage(context.Background(), s.Feeds()[0], 0)
	require.NoError(t, err)
	require.True(t, p.HasMore)
	require.Len(t, p.Listings, 3)
	require.Equal(t, []string{"0"}, srv.pages)

	l, err := s.Parse(p.Listings[0])
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/jobs/412345?utm_source=rss", l.SourceURL)
	require.Equal(t, "PhD Position in Quantum Machine Learning", l.Title)
	require.Equal(t, "Technical University of Munich", l.Institution)
	require.Equal(t, "Germany", l.Country)
	require.Equal(t, domain.RegionEurope, l.Region)
	require.Equal(t, "Physics, Computer science", l.Discipline)
	require.Equal(t, "30 Apr 2026 - 23:59 (Europe/Brussels)", l.DeadlineText)
	require.NotNil(t, l.Deadline)
	require.True(t, l.Deadline.Equal(time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "Prof. Anna Weber", l.Supervisor)
	require.Equal(t, domain.FundingFullyFunded, l.FundingType)
	require.Equal(t, domain.SourceEuraxess, l.Source)
	require.Equal(t, "Fully funded 4-year position under the supervision of Prof. Anna Weber.", l.RawSnippet)

	l, err = s.Parse(p.Listings[1])
	require.NoError(t, err)
	require.Equal(t, "https://euraxess.ec.europa.eu/jobs/400001", l.SourceURL)
	require.Equal(t, "Wageningen University", l.Institution)
	require.Equal(t, "Netherlands", l.Country)
	require.Equal(t, domain.FundingCSC, l.FundingType)
	require.Equal(t, "Biology, Environmental Science", l.Discipline)
	require.Nil(t, l.Deadline)
	require.Empty(t, l.Supervisor)

	_, err = s.Parse(p.Listings[2])
	require.Error(t, err)
}

func TestCollectWalksPages(t *testing.T) {
	srv := newFixtureServer(t)
	s := newScraper(t, srv.URL)

	res := scrape.Collect(context.Background(), s, scrape.Options{MaxPages: 3, MaxConsecutiveFailures: 2})

	require.Equal(t, []string{"0", "1"}, srv.pages)
	require.Len(t, res.Listings, 3)
	require.Equal(t, 1, res.Report.ParseErrors)
	require.Equal(t, domain.StateExhausted, res.Report.Feeds[0].State)
	require.Equal(t, "Spain", res.Listings[2].Country)
	require.Equal(t, "Universitat de Barcelona", res.Listings[2].Institution)
	require.Equal(t, domain.FundingUnknown, res.Listings[2].FundingType)
}
