// Package dedupe decides, for a batch of freshly parsed listings, which are
// new and which refresh listings already in the store.
package dedupe

import (
	"time"

	"phdhunt-engine/internal/domain"
)

type Rejected struct {
	Listing domain.Listing
	Reason  string
}

// Plan is the outcome of Reconcile: rows to insert, rows to update and
// candidates that can never be stored.
type Plan struct {
	Insert  []domain.Listing
	Update  []domain.Listing
	Invalid []Rejected
}

func (p Plan) Len() int { return len(p.Insert) + len(p.Update) }

// Keys returns the distinct canonical URLs of candidates, in first-seen
// order, skipping invalid ones. It is the set to look up before Reconcile.
func Keys(candidates []domain.Listing) []string {
	seen := make(map[string]bool, len(candidates))
	var keys []string
	for _, c := range candidates {
		k, err := CanonicalURL(c.SourceURL)
		if err != nil || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Reconcile splits candidates into inserts and updates against existing,
// which is keyed by canonical URL. New listings get FirstSeenAt = LastSeenAt
// = now. Known listings take every candidate field except FirstSeenAt, which
// is kept from the stored row, and LastSeenAt = now. When one batch holds the
// same URL more than once, the last candidate wins.
func Reconcile(candidates []domain.Listing, existing map[string]domain.Listing, now time.Time) Plan {
	var plan Plan

	order := make([]string, 0, len(candidates))
	latest := make(map[string]domain.Listing, len(candidates))

	for _, c := range candidates {
		key, err := CanonicalURL(c.SourceURL)
		if err != nil {
			plan.Invalid = append(plan.Invalid, Rejected{Listing: c, Reason: err.Error()})
			continue
		}
		c.SourceURL = key
		if !c.FundingType.Valid() {
			c.FundingType = domain.FundingUnknown
		}
		if _, ok := latest[key]; !ok {
			order = append(order, key)
		}
		latest[key] = c
	}

	for _, key := range order {
		c := latest[key]
		c.LastSeenAt = now
		if old, ok := existing[key]; ok {
			c.FirstSeenAt = old.FirstSeenAt
			plan.Update = append(plan.Update, c)
			continue
		}
		c.FirstSeenAt = now
		plan.Insert = append(plan.Insert, c)
	}
	return plan
}
