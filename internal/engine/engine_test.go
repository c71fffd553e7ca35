package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"phdhunt-engine/internal/dedupe"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/lock"
	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/store"
)

// fakeSource serves one feed whose first page holds urls, or fails every
// page when fail is set.
type fakeSource struct {
	name domain.SourceName
	urls []string
	fail bool
}

func (f *fakeSource) Name() domain.SourceName { return f.name }

func (f *fakeSource) Feeds() []types.Feed {
	return []types.Feed{{Label: "main", Region: domain.RegionEurope, URL: "https://" + string(f.name) + ".test/"}}
}

func (f *fakeSource) FetchPage(_ context.Context, feed types.Feed, page int) (types.Page, error) {
	if f.fail {
		return types.Page{}, &types.FetchError{URL: feed.URL, Status: 503, Attempts: 3}
	}
	p := types.Page{URL: feed.URL}
	for _, u := range f.urls {
		p.Listings = append(p.Listings, types.RawListing{Feed: feed, PageURL: u})
	}
	return p, nil
}

func (f *fakeSource) Parse(raw types.RawListing) (domain.Listing, error) {
	return domain.Listing{SourceURL: raw.PageURL, Title: "PhD at " + raw.PageURL, Source: f.name}, nil
}

type memStore struct {
	mu        sync.Mutex
	rows      map[string]domain.Listing
	commitErr error
	commits   int
}

func newMemStore() *memStore { return &memStore{rows: map[string]domain.Listing{}} }

func (m *memStore) Lookup(_ context.Context, keys []string) (map[string]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Listing{}
	for _, k := range keys {
		if l, ok := m.rows[k]; ok {
			out[k] = l
		}
	}
	return out, nil
}

func (m *memStore) Commit(_ context.Context, plan dedupe.Plan) (store.CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	if m.commitErr != nil {
		return store.CommitResult{}, m.commitErr
	}
	for _, l := range plan.Insert {
		m.rows[l.SourceURL] = l
	}
	for _, l := range plan.Update {
		m.rows[l.SourceURL] = l
	}
	return store.CommitResult{Inserted: len(plan.Insert), Updated: len(plan.Update)}, nil
}

type recordingSink struct {
	mu  sync.Mutex
	got []events.Type
}

func (r *recordingSink) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e.Type)
	return nil
}

func clock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestRunPartialFailureStillCommits(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "phdhunt.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db.Pool))
	t.Cleanup(func() { _ = db.Close() })

	sink := &recordingSink{}
	e := New(db, Options{Workers: 2, DefaultMaxPages: 3, MaxConsecutiveFailures: 2, Sink: sink})

	rep, err := e.Run(context.Background(), []types.Source{
		&fakeSource{name: domain.SourceEuraxess, fail: true},
		&fakeSource{name: domain.SourceScholarshipDb, urls: []string{"https://b.test/1", "https://b.test/2?utm_source=x"}},
	})
	require.NoError(t, err)
	require.Equal(t, domain.RunCompletedWithErrors, rep.Status)
	require.Equal(t, 2, rep.Inserted)
	require.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Errors, 1)

	a, ok := rep.Source(domain.SourceEuraxess)
	require.True(t, ok)
	require.True(t, a.Failed)
	require.Equal(t, 2, a.FailedPages)

	b, ok := rep.Source(domain.SourceScholarshipDb)
	require.True(t, ok)
	require.False(t, b.Failed)
	require.Equal(t, 2, b.New)

	n, err := db.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = db.Get(context.Background(), "https://b.test/2")
	require.NoError(t, err)

	require.Equal(t, []events.Type{events.RunStarted, events.SourceDone, events.SourceDone, events.RunFinished}, sink.got)
}

func TestRunTwiceUpdatesAndKeepsFirstSeen(t *testing.T) {
	st := newMemStore()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	e := New(st, Options{Workers: 1, Now: clock(start)})
	src := []types.Source{&fakeSource{name: domain.SourceEuraxess, urls: []string{"https://a.test/1"}}}

	rep, err := e.Run(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, rep.Status)
	first := st.rows["https://a.test/1"].FirstSeenAt

	rep, err = e.Run(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Inserted)
	require.Equal(t, 1, rep.Updated)
	s, _ := rep.Source(domain.SourceEuraxess)
	require.Equal(t, 1, s.Updated)

	row := st.rows["https://a.test/1"]
	require.True(t, row.FirstSeenAt.Equal(first))
	require.True(t, row.LastSeenAt.After(first))
}

func TestRunSameListingFromTwoSources(t *testing.T) {
	st := newMemStore()
	e := New(st, Options{Workers: 2})

	rep, err := e.Run(context.Background(), []types.Source{
		&fakeSource{name: domain.SourceEuraxess, urls: []string{"https://x.test/p/1"}},
		&fakeSource{name: domain.SourceScholarshipDb, urls: []string{"https://X.test/p/1/", "not a url"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Inserted)
	require.Len(t, st.rows, 1)
	require.Equal(t, domain.SourceScholarshipDb, st.rows["https://x.test/p/1"].Source)

	b, _ := rep.Source(domain.SourceScholarshipDb)
	require.Equal(t, 1, b.New)
	require.Equal(t, 1, b.Invalid)
}

func TestRunCommitFailureIsFatal(t *testing.T) {
	st := newMemStore()
	st.commitErr = errors.New("disk full")
	e := New(st, Options{})

	rep, err := e.Run(context.Background(), []types.Source{
		&fakeSource{name: domain.SourceEuraxess, urls: []string{"https://a.test/1"}},
	})
	var ce *store.CommitError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, domain.RunFailed, rep.Status)
	require.Contains(t, rep.Fatal, "disk full")
	require.Empty(t, st.rows)
}

func TestRunCancelledLeavesStoreUntouched(t *testing.T) {
	st := newMemStore()
	e := New(st, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := e.Run(ctx, []types.Source{
		&fakeSource{name: domain.SourceEuraxess, urls: []string{"https://a.test/1"}},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, domain.RunCancelled, rep.Status)
	require.Zero(t, st.commits)
}

type blockingLocker struct{}

func (blockingLocker) Acquire(ctx context.Context) (lock.Release, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunCancelledWhileWaitingForLock(t *testing.T) {
	st := newMemStore()
	e := New(st, Options{Locker: blockingLocker{}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rep, err := e.Run(ctx, []types.Source{
		&fakeSource{name: domain.SourceEuraxess, urls: []string{"https://a.test/1"}},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, domain.RunCancelled, rep.Status)
	require.Zero(t, st.commits)
}

func TestRunNoSources(t *testing.T) {
	rep, err := New(newMemStore(), Options{Workers: 4}).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, rep.Status)
	require.Zero(t, rep.Fetched())
}

func TestWithOptionsSharesCommitSemaphore(t *testing.T) {
	e := New(newMemStore(), Options{Workers: 1})
	f := e.WithOptions(Options{Workers: 3})
	require.Equal(t, 3, f.opts.Workers)

	e.commitSem <- struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	rep, err := f.Run(ctx, []types.Source{&fakeSource{name: domain.SourceEuraxess, urls: []string{"https://a.test/1"}}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, domain.RunCancelled, rep.Status)
	<-e.commitSem
}
