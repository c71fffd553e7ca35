package dedupe

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"phdhunt-engine/internal/domain"
)

func TestCanonicalURL(t *testing.T) {
	cases := map[string]string{
		"https://x.org/1": "https://x.org/1",
		"HTTPS://Example.ORG:443/phd/123/?utm_source=mail&b=2&a=1#apply": "https://example.org/phd/123?a=1&b=2",
		"http://example.org:80/jobs/?gclid=abc&fbclid=def":               "http://example.org/jobs",
		"https://euraxess.ec.europa.eu/jobs/412345?ref=rss&_ga=1.2":      "https://euraxess.ec.europa.eu/jobs/412345?ref=rss",
		"https://x.org/a%2fb/?utm_medium=x":                              "https://x.org/a%2Fb",
		"https://X.org//a%2Fb//c/":                                       "https://x.org/a%2Fb/c",
		"  https://www.findaphd.com/phds/project/quantum/?p=12345  ":     "https://www.findaphd.com/phds/project/quantum?p=12345",
	}
	for in, want := range cases {
		got, err := CanonicalURL(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestCanonicalURLIsStable(t *testing.T) {
	inputs := []string{
		"https://x.org/1",
		"HTTPS://Example.ORG:443/phd/123/?utm_source=mail&b=2&a=1#apply",
		"https://scholarshipdb.net/scholarships-in-Germany/PhD-Position-in-AI=abc.html?q=PhD&l=United+States",
		"https://www.findaphd.com/phds/project/quantum/?p12345",
		"https://example.org/",
		"https://x.org/a%2fb/?b=1&a=2",
	}
	for _, in := range inputs {
		once, err := CanonicalURL(in)
		require.NoError(t, err, in)
		twice, err := CanonicalURL(once)
		require.NoError(t, err, once)
		require.Equal(t, once, twice, in)
	}
}

func TestCanonicalURLKeepsDistinctListingsApart(t *testing.T) {
	pairs := [][2]string{
		{"https://x.org/a%2Fb", "https://x.org/a/b"},
		{"https://x.org/phd?source=12", "https://x.org/phd?source=13"},
		{"https://x.org/phd?ref=A1", "https://x.org/phd?ref=B2"},
	}
	for _, p := range pairs {
		a, err := CanonicalURL(p[0])
		require.NoError(t, err)
		b, err := CanonicalURL(p[1])
		require.NoError(t, err)
		require.NotEqual(t, a, b, "%s vs %s", p[0], p[1])
	}
}

func TestCanonicalURLRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not a url", "/jobs/1", "mailto:x@y.org", "ftp://x.org/a", "https:///nohost"} {
		_, err := CanonicalURL(in)
		require.ErrorIs(t, err, ErrInvalidURL, in)
	}
}

func apply(store map[string]domain.Listing, p Plan) {
	for _, l := range p.Insert {
		store[l.SourceURL] = l
	}
	for _, l := range p.Update {
		store[l.SourceURL] = l
	}
}

func TestReconcileNewThenUpdate(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)
	store := map[string]domain.Listing{}

	first := domain.Listing{SourceURL: "https://x.org/1", Title: "PhD in Optics", Source: domain.SourceEuraxess, FundingType: domain.FundingFullyFunded}
	plan := Reconcile([]domain.Listing{first}, store, t0)

	want := Plan{Insert: []domain.Listing{{
		SourceURL:   "https://x.org/1",
		Title:       "PhD in Optics",
		Source:      domain.SourceEuraxess,
		FundingType: domain.FundingFullyFunded,
		FirstSeenAt: t0,
		LastSeenAt:  t0,
	}}}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	apply(store, plan)

	changed := first
	changed.Title = "PhD in Quantum Optics"
	plan = Reconcile([]domain.Listing{changed}, store, t1)

	require.Empty(t, plan.Insert)
	require.Len(t, plan.Update, 1)
	u := plan.Update[0]
	require.Equal(t, "PhD in Quantum Optics", u.Title)
	require.True(t, u.FirstSeenAt.Equal(t0))
	require.True(t, u.LastSeenAt.Equal(t1))
}

func TestReconcileIsIdempotent(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	store := map[string]domain.Listing{}
	batch := []domain.Listing{
		{SourceURL: "https://x.org/1", Title: "A"},
		{SourceURL: "https://x.org/2", Title: "B"},
	}

	apply(store, Reconcile(batch, store, t1))
	require.Len(t, store, 2)

	again := Reconcile(batch, store, t2)
	require.Empty(t, again.Insert)
	require.Len(t, again.Update, 2)
	apply(store, again)

	require.Len(t, store, 2)
	for _, l := range store {
		require.True(t, l.FirstSeenAt.Equal(t1))
		require.True(t, l.LastSeenAt.Equal(t2))
	}

	// same input, same state, same plan
	require.Empty(t, cmp.Diff(Reconcile(batch, store, t2), Reconcile(batch, store, t2)))
}

func TestReconcileCollapsesBatchDuplicates(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	batch := []domain.Listing{
		{SourceURL: "https://x.org/1?utm_source=feed", Title: "first"},
		{SourceURL: "https://x.org/2", Title: "other"},
		{SourceURL: "HTTPS://X.org/1/", Title: "second"},
		{SourceURL: "", Title: "no url"},
	}

	plan := Reconcile(batch, map[string]domain.Listing{}, now)

	require.Len(t, plan.Insert, 2)
	require.Equal(t, "https://x.org/1", plan.Insert[0].SourceURL)
	require.Equal(t, "second", plan.Insert[0].Title)
	require.Equal(t, domain.FundingUnknown, plan.Insert[0].FundingType)
	require.Equal(t, "https://x.org/2", plan.Insert[1].SourceURL)

	require.Len(t, plan.Invalid, 1)
	require.Equal(t, "no url", plan.Invalid[0].Listing.Title)
	require.Equal(t, 2, plan.Len())

	require.Equal(t, []string{"https://x.org/1", "https://x.org/2"}, Keys(batch))
}
