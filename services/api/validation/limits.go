package validation

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Range is an inclusive numeric bound.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether min <= v <= max. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", formatNumber(r.Min), formatNumber(r.Max))
}

// LimitTable maps a sensor type to its allowed range. It is read-only once
// built and safe for concurrent use.
type LimitTable struct {
	ranges map[string]Range
}

// NewLimitTable copies the given ranges into a new table.
func NewLimitTable(ranges map[string]Range) (LimitTable, error) {
	out := make(map[string]Range, len(ranges))
	for typ, r := range ranges {
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
			return LimitTable{}, fmt.Errorf("limit %q: bounds must be numbers", typ)
		}
		if r.Min > r.Max {
			return LimitTable{}, fmt.Errorf("limit %q: min %s is greater than max %s", typ, formatNumber(r.Min), formatNumber(r.Max))
		}
		out[typ] = r
	}
	return LimitTable{ranges: out}, nil
}

// DefaultLimits returns the reference greenhouse table.
func DefaultLimits() LimitTable {
	return LimitTable{ranges: map[string]Range{
		"temperature":  {Min: -10.0, Max: 60.0},
		"airHumidity":  {Min: 0.0, Max: 100.0},
		"soilHumidity": {Min: 0.0, Max: 100.0},
		"luminosity":   {Min: 0.0, Max: 200000.0},
	}}
}

// Lookup returns the range configured for a sensor type.
func (t LimitTable) Lookup(sensorType string) (Range, bool) {
	r, ok := t.ranges[sensorType]
	return r, ok
}

// Types lists the configured sensor types in lexical order.
func (t LimitTable) Types() []string {
	types := make([]string, 0, len(t.ranges))
	for typ := range t.ranges {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of configured types.
func (t LimitTable) Len() int {
	return len(t.ranges)
}

type limitsFile struct {
	Limits map[string]Range `yaml:"limits"`
}

// LoadLimits reads a YAML file of the form
//
//	limits:
//	  temperature: {min: -10, max: 60}
//
// and returns the resulting table.
func LoadLimits(path string) (LimitTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LimitTable{}, fmt.Errorf("read limits: %w", err)
	}

	var f limitsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return LimitTable{}, fmt.Errorf("decode limits %s: %w", path, err)
	}
	if len(f.Limits) == 0 {
		return LimitTable{}, fmt.Errorf("decode limits %s: no limits declared", path)
	}
	return NewLimitTable(f.Limits)
}
