package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/sensor"
)

// WeeklySummary is the trailing-week aggregate served to physician dashboards
// and patient weekly views.
type WeeklySummary struct {
	Summary     Summary     `json:"summary"`
	NoData      bool        `json:"no_data"`
	Series      Series      `json:"series"`
	Days        []DayBucket `json:"days"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
}

// DayBucket is one day's chart series within the trailing week. The interval
// is half-open: a sample at exactly End falls into the next bucket.
type DayBucket struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Series Series    `json:"series"`
}

// Service assembles summaries from the query engine, caching results briefly.
type Service struct {
	samples *sensor.Service
	cache   Cache
	logger  zerolog.Logger
	now     func() time.Time
}

// ServiceConfig holds configuration for the aggregation service.
type ServiceConfig struct {
	Samples *sensor.Service

	// Cache is optional; when nil every summary is computed fresh.
	Cache Cache

	Logger zerolog.Logger

	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewService creates a new aggregation service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		samples: cfg.Samples,
		cache:   cfg.Cache,
		logger:  cfg.Logger,
		now:     now,
	}
}

// PatientWeeklySummary computes the trailing-week summary for one patient's
// authorized device set. Results are cached per patient for a short TTL; a
// cache failure is logged and the summary is computed fresh.
func (s *Service) PatientWeeklySummary(ctx context.Context, patientID string, deviceIDs []string) (*WeeklySummary, error) {
	cacheKey := "summary:weekly:" + patientID

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID).Msg("summary cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	start, end := WeeklyWindow(s.now())
	samples, err := s.samples.Window(ctx, deviceIDs, "", &start, &end)
	if err != nil {
		return nil, err
	}

	summary := &WeeklySummary{
		Series:      BuildSeries(samples),
		Days:        bucketWeek(samples, start),
		WindowStart: start,
		WindowEnd:   end,
	}

	stats, err := Summarize(samples)
	if err != nil {
		if !errors.Is(err, ErrNoData) {
			return nil, err
		}
		summary.NoData = true
	}
	summary.Summary = stats

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID).Msg("summary cache write failed")
		}
	}

	return summary, nil
}

// bucketWeek splits a week of samples into seven consecutive day buckets
// starting at start.
func bucketWeek(samples []sensor.Sample, start time.Time) []DayBucket {
	days := make([]DayBucket, 0, 7)
	for d := 0; d < 7; d++ {
		dayStart := start.AddDate(0, 0, d)
		dayEnd := dayStart.AddDate(0, 0, 1)
		days = append(days, DayBucket{
			Start:  dayStart,
			End:    dayEnd,
			Series: BucketByDay(samples, dayStart, dayEnd),
		})
	}
	return days
}

// DaySeries computes the chart series for one day's active window over the
// patient's devices. The interval is half-open: a sample at exactly dayEnd is
// excluded.
func (s *Service) DaySeries(ctx context.Context, deviceIDs []string, deviceFilter string, dayStart, dayEnd time.Time) (Series, error) {
	samples, err := s.samples.Window(ctx, deviceIDs, deviceFilter, &dayStart, &dayEnd)
	if err != nil {
		return Series{}, err
	}
	return BucketByDay(samples, dayStart, dayEnd), nil
}
