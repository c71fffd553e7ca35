package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Type string

const (
	RunStarted  Type = "run.started"
	SourceDone  Type = "run.source_done"
	RunFinished Type = "run.finished"
)

const version = 1

type Event struct {
	Type    Type            `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func New(runID string, typ Type, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{
		Type:    typ,
		Version: version,
		At:      time.Now().UTC(),
		RunID:   runID,
		Data:    raw,
	}
}

func (e Event) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Sink receives run events. Publishing is best effort: callers log errors
// and carry on.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every sink.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
