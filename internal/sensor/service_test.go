package sensor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink/vitalink/internal/sensor"
)

const testAPIKey = "device-key"

func newTestService(t *testing.T) (*sensor.Service, *sensor.InMemoryRepository) {
	t.Helper()
	repo := sensor.NewInMemoryRepository()
	svc := sensor.NewService(sensor.ServiceConfig{
		Repository:   repo,
		IngestAPIKey: testAPIKey,
		Logger:       zerolog.Nop(),
	})
	return svc, repo
}

func num(s string) *json.Number {
	n := json.Number(s)
	return &n
}

func TestWriteSample(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sample, err := svc.WriteSample(ctx, testAPIKey, sensor.RawPayload{
		DeviceID: "dev-1",
		BPM:      num("72"),
		SpO2:     num("98"),
	})
	require.NoError(t, err)

	assert.Equal(t, "dev-1", sample.DeviceID)
	assert.Equal(t, 72.0, sample.BPM)
	assert.Equal(t, 98.0, sample.SpO2)
	assert.NotZero(t, sample.Seq)
	assert.False(t, sample.CreatedAt.IsZero())
}

func TestWriteSample_WrongKey(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.WriteSample(context.Background(), "wrong-key", sensor.RawPayload{
		DeviceID: "dev-1",
		BPM:      num("72"),
		SpO2:     num("98"),
	})
	assert.ErrorIs(t, err, sensor.ErrInvalidAPIKey)
}

func TestWriteSample_InvalidPayload(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.WriteSample(context.Background(), testAPIKey, sensor.RawPayload{
		DeviceID: "dev-1",
	})
	assert.ErrorIs(t, err, sensor.ErrValidation)
}

func TestLatest_ByStoredSequence(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	// The second sample carries an older timestamp but a higher sequence;
	// latest means latest stored, not latest claimed.
	now := time.Now()
	require.NoError(t, repo.Insert(ctx, &sensor.Sample{DeviceID: "dev-1", BPM: 70, SpO2: 98, CreatedAt: now}))
	require.NoError(t, repo.Insert(ctx, &sensor.Sample{DeviceID: "dev-1", BPM: 75, SpO2: 97, CreatedAt: now.Add(-time.Hour)}))

	latest, err := svc.Latest(ctx, []string{"dev-1"}, "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 75.0, latest.BPM)
}

func TestLatest_NoData(t *testing.T) {
	svc, _ := newTestService(t)

	latest, err := svc.Latest(context.Background(), []string{"dev-1"}, "")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestLatest_FilterOutsideAuthorizedSet(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &sensor.Sample{DeviceID: "dev-2", BPM: 70, SpO2: 98, CreatedAt: time.Now()}))

	// dev-2 exists but is not in the caller's device set.
	latest, err := svc.Latest(ctx, []string{"dev-1"}, "dev-2")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestWindow_DeviceContainment(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Insert(ctx, &sensor.Sample{DeviceID: "dev-1", BPM: 70, SpO2: 98, CreatedAt: now}))
	require.NoError(t, repo.Insert(ctx, &sensor.Sample{DeviceID: "dev-2", BPM: 80, SpO2: 97, CreatedAt: now}))

	samples, err := svc.Window(ctx, []string{"dev-1"}, "", nil, nil)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "dev-1", samples[0].DeviceID)
}

func TestWindow_TimeBounds(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &sensor.Sample{
			DeviceID:  "dev-1",
			BPM:       float64(60 + i),
			SpO2:      98,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	since := base.Add(time.Hour)
	until := base.Add(3 * time.Hour)
	samples, err := svc.Window(ctx, []string{"dev-1"}, "", &since, &until)
	require.NoError(t, err)

	require.Len(t, samples, 3)
	assert.Equal(t, 61.0, samples[0].BPM)
	assert.Equal(t, 63.0, samples[2].BPM)
}

func TestWindow_EmptyDeviceSet(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &sensor.Sample{DeviceID: "dev-1", BPM: 70, SpO2: 98, CreatedAt: time.Now()}))

	samples, err := svc.Window(ctx, nil, "", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sample := &sensor.Sample{DeviceID: "dev-1", BPM: 70, SpO2: 98, CreatedAt: time.Now()}
	require.NoError(t, repo.Insert(ctx, sample))

	require.NoError(t, svc.Delete(ctx, sample.Seq))
	assert.ErrorIs(t, svc.Delete(ctx, sample.Seq), sensor.ErrSampleNotFound)
}

func TestBreakerRepository_PassesThrough(t *testing.T) {
	repo := sensor.NewBreakerRepository(sensor.NewInMemoryRepository(), zerolog.Nop())
	ctx := context.Background()

	sample := &sensor.Sample{DeviceID: "dev-1", BPM: 70, SpO2: 98, CreatedAt: time.Now()}
	require.NoError(t, repo.Insert(ctx, sample))

	latest, err := repo.Latest(ctx, []string{"dev-1"})
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 70.0, latest.BPM)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
