package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/store"
)

type ListingsHandler struct {
	Store ListingStore
}

// ParseFilter reads listing filters from query parameters:
// country, discipline, funding, region, source, q, since (YYYY-MM-DD or
// RFC3339), window (24h|7d|30d|all), sort, limit.
func ParseFilter(q map[string][]string, now time.Time) (store.Filter, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	f := store.Filter{
		Country:    get("country"),
		Discipline: get("discipline"),
		Query:      get("q"),
		Sort:       get("sort"),
	}
	if v := get("funding"); v != "" {
		f.FundingType = domain.FundingType(strings.ToLower(v))
		if !f.FundingType.Valid() {
			return f, errors.New("unknown funding type " + strconv.Quote(v))
		}
	}
	if v := get("region"); v != "" {
		f.Region = domain.Region(strings.ToLower(v))
		if !f.Region.Valid() {
			return f, errors.New("unknown region " + strconv.Quote(v))
		}
	}
	if v := get("source"); v != "" {
		f.Source = domain.SourceName(strings.ToLower(v))
		if !f.Source.Valid() {
			return f, errors.New("unknown source " + strconv.Quote(v))
		}
	}

	switch get("window") {
	case "", "all":
	case "24h":
		f.SeenSince = now.Add(-24 * time.Hour)
	case "7d":
		f.SeenSince = now.AddDate(0, 0, -7)
	case "30d":
		f.SeenSince = now.AddDate(0, 0, -30)
	default:
		return f, errors.New("window must be 24h, 7d, 30d or all")
	}
	if v := get("since"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, v); err != nil {
				return f, errors.New("since must be YYYY-MM-DD or RFC3339")
			}
		}
		f.SeenSince = t
	}

	if v := get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

func (h ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query(), time.Now().UTC())
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_filter", err.Error())
		return
	}
	listings, err := h.Store.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if listings == nil {
		listings = []domain.Listing{}
	}
	WriteJSON(w, http.StatusOK, listings)
}

// Get serves /listing?url=<source url>.
func (h ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_url", "url query parameter is required")
		return
	}
	l, err := h.Store.Get(r.Context(), u)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, l)
}

func (h ListingsHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.Count(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}
