// Package query answers aggregate questions over the stored corpus by
// scanning every accepted document.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/02loveslollipop/estufa-iot/services/api/store"
	"github.com/02loveslollipop/estufa-iot/services/api/xmldoc"
)

// Filter narrows the flattened readings. Zero values disable a criterion.
type Filter struct {
	SensorID string     `json:"sensorId,omitempty"`
	Type     string     `json:"type,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}

// Reading is one reading joined with its sensor descriptor.
type Reading struct {
	SensorID       string  `json:"sensorId"`
	Type           string  `json:"type"`
	Unit           string  `json:"unit"`
	Location       string  `json:"location"`
	Timestamp      string  `json:"timestamp"`
	Value          float64 `json:"value"`
	SourceDocument string  `json:"sourceDocument"`
}

// Summary aggregates the values of one sensor type.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// Result is the answer to one query.
type Result struct {
	Total     int                `json:"total"`
	Truncated bool               `json:"truncated"`
	Filters   Filter             `json:"filters"`
	Readings  []Reading          `json:"readings"`
	Summary   map[string]Summary `json:"summary"`
	Documents int                `json:"documents"`
}

// Scanner reads documents from a store and flattens their readings.
type Scanner struct {
	store store.BlobStore
	log   *slog.Logger
}

// NewScanner returns a scanner over st.
func NewScanner(st store.BlobStore, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{store: st, log: log}
}

// Run scans the whole corpus. Total counts every match; Readings holds at
// most Limit of them in corpus order, and Summary covers every match.
func (s *Scanner) Run(ctx context.Context, f Filter) (*Result, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	res := &Result{
		Filters:  f,
		Readings: make([]Reading, 0),
		Summary:  map[string]Summary{},
	}
	acc := map[string]*accumulator{}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", id, err)
		}
		content, err := xmldoc.ParseContent(raw)
		if err != nil {
			return nil, fmt.Errorf("parse document %s: %w", id, err)
		}
		res.Documents++

		for _, r := range Flatten(id, content) {
			if !f.Match(r) {
				continue
			}
			res.Total++
			a, ok := acc[r.Type]
			if !ok {
				a = &accumulator{min: math.Inf(1), max: math.Inf(-1)}
				acc[r.Type] = a
			}
			a.add(r.Value)

			if f.Limit <= 0 || len(res.Readings) < f.Limit {
				res.Readings = append(res.Readings, r)
			} else {
				res.Truncated = true
			}
		}
	}

	for typ, a := range acc {
		res.Summary[typ] = a.summary()
	}

	s.log.Debug("query executed",
		slog.Int("documents", res.Documents),
		slog.Int("matches", res.Total),
		slog.String("sensorId", f.SensorID),
		slog.String("type", f.Type),
	)
	return res, nil
}

// Flatten joins each reading of a document with its sensor descriptor.
// Readings whose value is not numeric are skipped.
func Flatten(docID string, content *xmldoc.Content) []Reading {
	catalog := content.Catalog()
	out := make([]Reading, 0, len(content.Readings))
	for _, r := range content.Readings {
		value, err := strconv.ParseFloat(strings.TrimSpace(r.ValueText), 64)
		if err != nil {
			continue
		}
		desc, ok := catalog[r.SensorRef]
		if !ok {
			desc = xmldoc.Descriptor{Type: "unknown", Unit: "N/A"}
		}
		out = append(out, Reading{
			SensorID:       r.SensorRef,
			Type:           desc.Type,
			Unit:           desc.Unit,
			Location:       desc.Location,
			Timestamp:      strings.TrimSpace(r.Timestamp),
			Value:          value,
			SourceDocument: docID,
		})
	}
	return out
}

// Match reports whether r satisfies every set criterion. With a time window
// set, readings whose timestamp cannot be parsed never match.
func (f Filter) Match(r Reading) bool {
	if f.SensorID != "" && r.SensorID != f.SensorID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.From == nil && f.To == nil {
		return true
	}

	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return false
	}
	if f.From != nil && ts.Before(*f.From) {
		return false
	}
	if f.To != nil && ts.After(*f.To) {
		return false
	}
	return true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp accepts xs:dateTime values with or without a zone offset;
// values without one are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Types returns the summary keys in lexical order.
func (r *Result) Types() []string {
	types := make([]string, 0, len(r.Summary))
	for t := range r.Summary {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

type accumulator struct {
	count    int
	sum      float64
	min, max float64
}

func (a *accumulator) add(v float64) {
	a.count++
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
}

func (a *accumulator) summary() Summary {
	if a.count == 0 {
		return Summary{}
	}
	return Summary{Count: a.count, Min: a.min, Max: a.max, Avg: a.sum / float64(a.count)}
}
