package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/poll"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	lastF   store.Filter
	results []domain.Listing
}

func (f *fakeStore) List(_ context.Context, filter store.Filter) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastF = filter
	return f.results, nil
}

func (f *fakeStore) Get(_ context.Context, u string) (domain.Listing, error) {
	for _, l := range f.results {
		if l.SourceURL == u {
			return l, nil
		}
	}
	return domain.Listing{}, store.ErrNotFound
}

func (f *fakeStore) Count(context.Context) (int, error) { return len(f.results), nil }

type fakeRunner struct {
	mu   sync.Mutex
	reqs []poll.Request
	ctxs []context.Context
	busy bool
}

func (f *fakeRunner) Start(ctx context.Context, req poll.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return poll.ErrRunInProgress
	}
	f.busy = true
	f.reqs = append(f.reqs, req)
	f.ctxs = append(f.ctxs, ctx)
	return nil
}

func (f *fakeRunner) Status() types.ScrapeStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.ScrapeStatus{Running: f.busy, LastStatus: domain.RunCompleted}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore, *fakeRunner) {
	t.Helper()
	st := &fakeStore{results: []domain.Listing{
		{SourceURL: "https://euraxess.ec.europa.eu/jobs/1", Title: "PhD in Optics", FundingType: domain.FundingCSC, Region: domain.RegionEurope},
	}}
	runner := &fakeRunner{}
	var cfgVal atomic.Value
	cfgVal.Store(config.Default())

	h := NewHandler(Deps{
		Store:       st,
		Hub:         events.NewHub(),
		CfgVal:      &cfgVal,
		UserCfgPath: t.TempDir() + "/config.yml",
		LoadCfg:     func() (config.Config, error) { return config.Default(), nil },
		Runner:      runner,
		NextRun:     func() string { return "2026-10-20T08:00:00Z" },
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, st, runner
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, b
}

func TestHealthAndRequestID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, body := do(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"ok":true`)
	require.Len(t, res.Header.Get("X-Request-ID"), 32)

	res, _ = do(t, http.MethodPost, srv.URL+"/health", "")
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	require.Equal(t, "GET", res.Header.Get("Allow"))

	res, _ = do(t, http.MethodHead, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestListingsFilters(t *testing.T) {
	srv, st, _ := newTestServer(t)

	res, body := do(t, http.MethodGet, srv.URL+"/listings?region=europe&funding=CSC&country=Germany&q=optics&limit=5", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []domain.Listing
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	require.Equal(t, "PhD in Optics", got[0].Title)

	require.Equal(t, domain.RegionEurope, st.lastF.Region)
	require.Equal(t, domain.FundingCSC, st.lastF.FundingType)
	require.Equal(t, "Germany", st.lastF.Country)
	require.Equal(t, "optics", st.lastF.Query)
	require.Equal(t, 5, st.lastF.Limit)

	res, body = do(t, http.MethodGet, srv.URL+"/listings?funding=stipend", "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	var apiErr APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	require.Equal(t, "bad_filter", apiErr.Error.Code)
	require.NotEmpty(t, apiErr.Error.RequestID)
}

func TestListingGetAndCount(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, body := do(t, http.MethodGet, srv.URL+"/listings/count", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"count":1}`, string(body))

	res, _ = do(t, http.MethodGet, srv.URL+"/listing?url=https://euraxess.ec.europa.eu/jobs/1", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = do(t, http.MethodGet, srv.URL+"/listing?url=https://x.org/none", "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = do(t, http.MethodGet, srv.URL+"/listing", "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestScrapeRunConflict(t *testing.T) {
	srv, _, runner := newTestServer(t)

	res, _ := do(t, http.MethodPost, srv.URL+"/scrape/run", `{"sources":["euraxess"],"max_pages":1}`)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	require.Equal(t, []poll.Request{{Sources: []string{"euraxess"}, MaxPages: 1}}, runner.reqs)

	res, body := do(t, http.MethodPost, srv.URL+"/scrape/run", "")
	require.Equal(t, http.StatusConflict, res.StatusCode)
	require.Contains(t, string(body), "already_running")

	res, body = do(t, http.MethodGet, srv.URL+"/scrape/status", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"running":true`)
	require.Contains(t, string(body), `"next_run_at":"2026-10-20T08:00:00Z"`)

	res, _ = do(t, http.MethodPost, srv.URL+"/scrape/run", `{"sources":`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestScrapeRunUsesServerContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{}
	srv := httptest.NewServer(NewHandler(Deps{Runner: runner, BaseCtx: base}))
	t.Cleanup(srv.Close)

	res, _ := do(t, http.MethodPost, srv.URL+"/scrape/run", "")
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	runner.mu.Lock()
	require.Len(t, runner.ctxs, 1)
	runCtx := runner.ctxs[0]
	runner.mu.Unlock()

	// the request is over, the run context is still live until shutdown
	require.NoError(t, runCtx.Err())
	cancel()
	require.ErrorIs(t, runCtx.Err(), context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, body := do(t, http.MethodGet, srv.URL+"/config/validate", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var v config.Validation
	require.NoError(t, json.Unmarshal(body, &v))
	require.Empty(t, v.Errors)

	res, body = do(t, http.MethodPut, srv.URL+"/config", `{"app":{"port":0}}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	var apiErr struct {
		Error struct {
			Code    string            `json:"code"`
			Details config.Validation `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &apiErr))
	require.Equal(t, "invalid_config", apiErr.Error.Code)
	require.NotEmpty(t, apiErr.Error.Details.Errors)
}

func TestCorsPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/listings", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	require.Equal(t, "http://localhost:5173", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestParseFilterWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	f, err := ParseFilter(map[string][]string{"window": {"7d"}}, now)
	require.NoError(t, err)
	require.True(t, f.SeenSince.Equal(now.AddDate(0, 0, -7)))

	f, err = ParseFilter(map[string][]string{"window": {"all"}, "since": {"2026-01-15"}}, now)
	require.NoError(t, err)
	require.True(t, f.SeenSince.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))

	for _, q := range []map[string][]string{
		{"window": {"1y"}},
		{"since": {"last week"}},
		{"limit": {"-1"}},
		{"region": {"mars"}},
		{"source": {"linkedin"}},
	} {
		_, err := ParseFilter(q, now)
		require.Error(t, err, q)
	}
}

func TestEventsStream(t *testing.T) {
	hub := events.NewHub()
	srv := httptest.NewServer(NewHandler(Deps{Hub: hub}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	rd := bufio.NewReader(res.Body)
	readEvent := func() (name, data string) {
		for {
			line, err := rd.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	name, _ := readEvent()
	require.Equal(t, "ping", name)
	require.Equal(t, 1, hub.Subscribers())

	require.NoError(t, hub.Publish(ctx, events.New("run-1", events.RunStarted, nil)))
	name, data := readEvent()
	require.Equal(t, string(events.RunStarted), name)
	require.Contains(t, data, `"run_id":"run-1"`)
}

func TestDBCheckpoint(t *testing.T) {
	srv := httptest.NewServer(NewHandler(Deps{}))
	t.Cleanup(srv.Close)
	res, _ := do(t, http.MethodPost, srv.URL+"/db/checkpoint", "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	db, err := store.Open(filepath.Join(t.TempDir(), "phdhunt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))

	local := httptest.NewServer(NewHandler(Deps{DB: db.Local()}))
	t.Cleanup(local.Close)
	res, body := do(t, http.MethodPost, local.URL+"/db/checkpoint", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"busy":false`)
}

func TestIsLoopback(t *testing.T) {
	require.True(t, isLoopback("127.0.0.1:5000"))
	require.True(t, isLoopback("[::1]:5000"))
	require.True(t, isLoopback("localhost"))
	require.False(t, isLoopback("192.168.1.10:5000"))
	require.False(t, isLoopback("garbage"))
}
