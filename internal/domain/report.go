package domain

import "time"

// PageState is the pagination state of one feed. Exhausted and Failed are terminal;
// a feed that stops in HasMore was capped by max pages.
type PageState string

const (
	StateFetching  PageState = "fetching"
	StateHasMore   PageState = "has_more"
	StateExhausted PageState = "exhausted"
	StateFailed    PageState = "failed"
)

type RunStatus string

const (
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunFailed              RunStatus = "failed"
	RunCancelled           RunStatus = "cancelled"
)

type FeedReport struct {
	Label        string    `json:"label"`
	State        PageState `json:"state"`
	PagesFetched int       `json:"pagesFetched"`
	FailedPages  int       `json:"failedPages"`
	ParseErrors  int       `json:"parseErrors"`
	Listings     int       `json:"listings"`
}

type SourceReport struct {
	Source       SourceName   `json:"source"`
	Failed       bool         `json:"failed"`
	Fetched      int          `json:"fetched"`
	New          int          `json:"new"`
	Updated      int          `json:"updated"`
	Invalid      int          `json:"invalid"`
	PagesFetched int          `json:"pagesFetched"`
	FailedPages  int          `json:"failedPages"`
	ParseErrors  int          `json:"parseErrors"`
	Feeds        []FeedReport `json:"feeds"`
	Errors       []string     `json:"errors,omitempty"`
}

// RunReport summarizes one collection run. It is not persisted by the engine.
type RunReport struct {
	RunID      string         `json:"runId"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Duration   time.Duration  `json:"duration"`
	Sources    []SourceReport `json:"sources"`
	Inserted   int            `json:"inserted"`
	Updated    int            `json:"updated"`
	Errors     []string       `json:"errors,omitempty"`
	Fatal      string         `json:"fatal,omitempty"`
}

func (r RunReport) Source(name SourceName) (SourceReport, bool) {
	for _, s := range r.Sources {
		if s.Source == name {
			return s, true
		}
	}
	return SourceReport{}, false
}

func (r RunReport) Fetched() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Fetched
	}
	return n
}
