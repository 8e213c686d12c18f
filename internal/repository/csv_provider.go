package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
)

// csvBar is the on-disk row shape. Timestamps accept RFC3339 or plain
// dates.
type csvBar struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// CSVProvider serves historical bars from <dir>/<SYMBOL>_<timeframe>.csv
// files, falling back to <dir>/<SYMBOL>.csv. Malformed files are rejected,
// never repaired.
type CSVProvider struct {
	dir string
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

func (p *CSVProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, tf repository.Timeframe) (models.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", symbol, tf))
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(p.dir, symbol+".csv")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series file: %w", err)
	}
	defer f.Close()

	var rows []csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s contains no bars", path)
	}

	series := make(models.Series, 0, len(rows))
	for i, r := range rows {
		ts, err := parseBarTime(r.Time)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		series = append(series, models.Bar{
			Time:   ts,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

func parseBarTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
