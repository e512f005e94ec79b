// Package aggregate computes heart-rate summaries and time-bucketed series
// over sample windows for dashboards and physician views.
package aggregate

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/vitalink/vitalink/internal/sensor"
)

// ErrNoData signals a valid query whose window contained no samples. Callers
// render an empty state; it is never an HTTP error.
var ErrNoData = errors.New("no samples in window")

// Summary holds heart-rate statistics over a sample window. Min and Max are
// nil when the window was empty so an absent value can never be confused with
// a real measurement.
type Summary struct {
	AverageBPM float64  `json:"avg_hr"`
	MinBPM     *float64 `json:"min_hr"`
	MaxBPM     *float64 `json:"max_hr"`
}

// Summarize computes average/min/max heart rate over the given samples. The
// average is the arithmetic mean rounded to two decimal places. An empty
// input returns a zero average, nil min/max, and ErrNoData; min/max are never
// evaluated over empty input.
func Summarize(samples []sensor.Sample) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrNoData
	}

	sum := 0.0
	minBPM := samples[0].BPM
	maxBPM := samples[0].BPM
	for _, s := range samples {
		sum += s.BPM
		if s.BPM < minBPM {
			minBPM = s.BPM
		}
		if s.BPM > maxBPM {
			maxBPM = s.BPM
		}
	}

	avg := math.Round(sum/float64(len(samples))*100) / 100

	return Summary{
		AverageBPM: avg,
		MinBPM:     &minBPM,
		MaxBPM:     &maxBPM,
	}, nil
}

// SeriesPoint is one measurement in a chart series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series holds the two parallel chart series derived from a sample window.
type Series struct {
	BPM  []SeriesPoint `json:"bpm"`
	SpO2 []SeriesPoint `json:"spo2"`
}

// BuildSeries splits samples into parallel heart-rate and SpO₂ series, each
// sorted by timestamp ascending. The sort is stable: samples with equal
// timestamps keep their stored order.
func BuildSeries(samples []sensor.Sample) Series {
	series := Series{
		BPM:  make([]SeriesPoint, 0, len(samples)),
		SpO2: make([]SeriesPoint, 0, len(samples)),
	}

	for _, s := range samples {
		series.BPM = append(series.BPM, SeriesPoint{Timestamp: s.CreatedAt, Value: s.BPM})
		series.SpO2 = append(series.SpO2, SeriesPoint{Timestamp: s.CreatedAt, Value: s.SpO2})
	}

	sort.SliceStable(series.BPM, func(i, j int) bool {
		return series.BPM[i].Timestamp.Before(series.BPM[j].Timestamp)
	})
	sort.SliceStable(series.SpO2, func(i, j int) bool {
		return series.SpO2[i].Timestamp.Before(series.SpO2[j].Timestamp)
	})

	return series
}

// BucketByDay filters samples into the half-open interval [dayStart, dayEnd)
// and builds the chart series for that day. A sample at exactly dayEnd is
// excluded.
func BucketByDay(samples []sensor.Sample, dayStart, dayEnd time.Time) Series {
	var inDay []sensor.Sample
	for _, s := range samples {
		if !s.CreatedAt.Before(dayStart) && s.CreatedAt.Before(dayEnd) {
			inDay = append(inDay, s)
		}
	}
	return BuildSeries(inDay)
}

// WeeklyWindow returns the canonical trailing-week range [now-7d, now] used
// for physician summaries and patient weekly dashboards.
func WeeklyWindow(now time.Time) (start, end time.Time) {
	return now.AddDate(0, 0, -7), now
}
