package models

import (
	"fmt"
	"time"
)

// Bar represents one OHLCV observation. Immutable once produced by the
// data source.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the internal price relationships of a single bar.
func (b Bar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar at %s: non-positive price", b.Time.Format(time.RFC3339))
	}
	if b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar at %s: high %.6f below open/close", b.Time.Format(time.RFC3339), b.High)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("bar at %s: low %.6f above open/close", b.Time.Format(time.RFC3339), b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar at %s: negative volume", b.Time.Format(time.RFC3339))
	}
	return nil
}

// Series is an ordered sequence of bars for one symbol with strictly
// increasing timestamps. Never mutated in place; Slice returns views.
type Series []Bar

// Validate rejects out-of-order or duplicate timestamps and malformed bars.
// The engine does not silently fix bad input from a series provider.
func (s Series) Validate() error {
	for i := range s {
		if err := s[i].Validate(); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		if i == 0 {
			continue
		}
		if !s[i].Time.After(s[i-1].Time) {
			return fmt.Errorf("index %d: timestamp %s not after %s",
				i, s[i].Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Slice returns the half-open window [i0, i1) as a view over the same
// backing array. Bounds are clamped.
func (s Series) Slice(i0, i1 int) Series {
	if i0 < 0 {
		i0 = 0
	}
	if i1 > len(s) {
		i1 = len(s)
	}
	if i0 >= i1 {
		return Series{}
	}
	return s[i0:i1]
}

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}
