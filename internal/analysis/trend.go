// Package analysis computes the trend overlays the dashboard draws on top
// of cached series: moving averages for the index-history chart and
// cross-series correlation for the macro panel.
package analysis

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/quantlens/trendview/internal/normalize"
)

// Trend is a moving-average overlay for one series.
type Trend struct {
	Window int       `json:"window"`
	SMA    []float64 `json:"sma"`
	EMA    []float64 `json:"ema"`
	Last   float64   `json:"last"`
	// Change is the relative move of the last value against the last SMA
	// point, the "above/below trend" signal the dashboard colors by.
	Change float64 `json:"change"`
}

// TrendSeries computes SMA and EMA overlays over closing values.
// The first window-1 positions of the overlays are the usual lookback zeros.
func TrendSeries(closes []float64, window int) (*Trend, error) {
	if window < 2 {
		return nil, fmt.Errorf("window must be at least 2, got %d", window)
	}
	if len(closes) < window {
		return nil, fmt.Errorf("need at least %d points, got %d", window, len(closes))
	}

	sma := talib.Sma(closes, window)
	ema := talib.Ema(closes, window)

	last := closes[len(closes)-1]
	trend := &Trend{
		Window: window,
		SMA:    sma,
		EMA:    ema,
		Last:   last,
	}
	if anchor := sma[len(sma)-1]; anchor != 0 {
		trend.Change = (last - anchor) / anchor
	}

	return trend, nil
}

// Correlation returns the Pearson correlation of two series, aligned on
// their common tail (series from different sources rarely match lengths).
func Correlation(a, b []float64) (float64, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0, fmt.Errorf("need at least 2 overlapping points, got %d", n)
	}

	return stat.Correlation(a[len(a)-n:], b[len(b)-n:], nil), nil
}

// SeriesFromRecords extracts a numeric series from normalized records by
// logical key, skipping records where the field is absent.
func SeriesFromRecords(items []map[string]interface{}, logicalKey string) []float64 {
	series := make([]float64, 0, len(items))
	for _, item := range items {
		if _, ok := normalize.Resolve(item, logicalKey); !ok {
			continue
		}
		series = append(series, normalize.Float(item, logicalKey))
	}
	return series
}
