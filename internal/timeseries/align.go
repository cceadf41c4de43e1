// Package timeseries orders dated rasters and maps their acquisition dates
// onto a periodic day-of-year axis for harmonic regression.
package timeseries

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Observation pairs a raster file with its acquisition date.
type Observation struct {
	Path string
	Date time.Time
}

var dateRe = regexp.MustCompile(`\d{8}`)

// DateFromName extracts the acquisition date from a Sentinel-1 style file
// name, where the fifth underscore-delimited field starts with YYYYMMDD
// (e.g. S1A_IW_GRDH_1SDV_20200114T031905_..._VV.img). If the name does not
// follow that convention, the first 8-digit run anywhere in it is used.
func DateFromName(name string) (time.Time, error) {
	fields := strings.Split(name, "_")
	if len(fields) > 4 && len(fields[4]) >= 8 {
		if d, err := time.Parse("20060102", fields[4][:8]); err == nil {
			return d, nil
		}
	}
	if m := dateRe.FindString(name); m != "" {
		if d, err := time.Parse("20060102", m); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("no acquisition date in file name %q", name)
}

// Align sorts observations by date ascending and returns them together with
// a periodic coordinate per observation: the day of year, in [1, freq].
//
// When the series crosses a calendar year boundary the raw day-of-year
// sequence is no longer non-decreasing; in that case every value is rebased
// on the first observation's day of year and negative values are wrapped
// forward by one full cycle of length freq, so the result is monotone and
// spans at most one synthetic period. A single observation yields its own
// day of year; whatever degenerate fit that produces downstream is the
// fitter's concern.
func Align(obs []Observation, freq int) ([]Observation, []float64, error) {
	if len(obs) == 0 {
		return nil, nil, fmt.Errorf("empty time series")
	}
	if freq <= 0 {
		return nil, nil, fmt.Errorf("frequency must be positive, got %d", freq)
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	coords := make([]float64, len(sorted))
	for i, o := range sorted {
		coords[i] = float64(o.Date.YearDay())
	}

	if !nonDecreasing(coords) {
		start := coords[0]
		for i := range coords {
			coords[i] -= start
			if coords[i] < 0 {
				coords[i] += float64(freq)
			}
		}
	}
	return sorted, coords, nil
}

func nonDecreasing(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] < v[i-1] {
			return false
		}
	}
	return true
}
