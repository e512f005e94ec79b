package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink/vitalink/internal/aggregate"
	"github.com/vitalink/vitalink/internal/sensor"
)

func sample(deviceID string, bpm, spo2 float64, at time.Time) sensor.Sample {
	return sensor.Sample{DeviceID: deviceID, BPM: bpm, SpO2: spo2, CreatedAt: at}
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	samples := []sensor.Sample{
		sample("dev-1", 60, 98, now),
		sample("dev-1", 80, 97, now),
		sample("dev-1", 100, 96, now),
	}

	summary, err := aggregate.Summarize(samples)
	require.NoError(t, err)

	assert.Equal(t, 80.0, summary.AverageBPM)
	require.NotNil(t, summary.MinBPM)
	require.NotNil(t, summary.MaxBPM)
	assert.Equal(t, 60.0, *summary.MinBPM)
	assert.Equal(t, 100.0, *summary.MaxBPM)
}

func TestSummarize_RoundsToTwoDecimals(t *testing.T) {
	now := time.Now()
	samples := []sensor.Sample{
		sample("dev-1", 70, 98, now),
		sample("dev-1", 71, 98, now),
		sample("dev-1", 71, 98, now),
	}

	summary, err := aggregate.Summarize(samples)
	require.NoError(t, err)

	// 212/3 = 70.666..., rounded to 70.67.
	assert.Equal(t, 70.67, summary.AverageBPM)
}

func TestSummarize_Empty(t *testing.T) {
	summary, err := aggregate.Summarize(nil)
	assert.ErrorIs(t, err, aggregate.ErrNoData)
	assert.Zero(t, summary.AverageBPM)
	assert.Nil(t, summary.MinBPM)
	assert.Nil(t, summary.MaxBPM)
}

func TestBuildSeries_SortedAndStable(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	samples := []sensor.Sample{
		sample("dev-1", 75, 97, base.Add(2*time.Hour)),
		sample("dev-1", 70, 98, base),
		sample("dev-2", 72, 96, base), // same timestamp, stored after dev-1
	}

	series := aggregate.BuildSeries(samples)

	require.Len(t, series.BPM, 3)
	require.Len(t, series.SpO2, 3)

	assert.Equal(t, 70.0, series.BPM[0].Value)
	assert.Equal(t, 72.0, series.BPM[1].Value, "equal timestamps keep stored order")
	assert.Equal(t, 75.0, series.BPM[2].Value)

	assert.Equal(t, 98.0, series.SpO2[0].Value)
	assert.Equal(t, 96.0, series.SpO2[1].Value)
	assert.Equal(t, 97.0, series.SpO2[2].Value)
}

func TestBuildSeries_Empty(t *testing.T) {
	series := aggregate.BuildSeries(nil)
	assert.NotNil(t, series.BPM)
	assert.Empty(t, series.BPM)
	assert.NotNil(t, series.SpO2)
	assert.Empty(t, series.SpO2)
}

func TestBucketByDay_HalfOpenInterval(t *testing.T) {
	dayStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	samples := []sensor.Sample{
		sample("dev-1", 69, 98, dayStart.Add(-time.Second)),
		sample("dev-1", 70, 98, dayStart),
		sample("dev-1", 71, 98, dayEnd.Add(-time.Second)),
		sample("dev-1", 72, 98, dayEnd), // exactly at the end boundary
	}

	series := aggregate.BucketByDay(samples, dayStart, dayEnd)

	require.Len(t, series.BPM, 2)
	assert.Equal(t, 70.0, series.BPM[0].Value)
	assert.Equal(t, 71.0, series.BPM[1].Value)
}

func TestWeeklyWindow(t *testing.T) {
	now := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	start, end := aggregate.WeeklyWindow(now)
	assert.Equal(t, now.AddDate(0, 0, -7), start)
	assert.Equal(t, now, end)
}
