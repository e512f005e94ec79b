package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vitalink/vitalink/internal/aggregate"
	"github.com/vitalink/vitalink/internal/api/middleware"
	"github.com/vitalink/vitalink/internal/api/response"
	"github.com/vitalink/vitalink/internal/sensor"
)

// SensorHandler handles sample ingestion and history endpoints.
type SensorHandler struct {
	samples   *sensor.Service
	summaries *aggregate.Service
	metrics   *middleware.IngestMetrics
}

// NewSensorHandler creates a new SensorHandler. metrics may be nil.
func NewSensorHandler(samples *sensor.Service, summaries *aggregate.Service, metrics *middleware.IngestMetrics) *SensorHandler {
	return &SensorHandler{
		samples:   samples,
		summaries: summaries,
		metrics:   metrics,
	}
}

// Post handles POST /sensor - device sample ingestion, authenticated by the
// x-api-key header.
func (h *SensorHandler) Post(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("x-api-key")

	var payload sensor.RawPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.recordRejected("http", "malformed_json")
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	sample, err := h.samples.WriteSample(r.Context(), apiKey, payload)
	if err != nil {
		switch {
		case errors.Is(err, sensor.ErrInvalidAPIKey):
			h.recordRejected("http", "invalid_api_key")
			response.Unauthorized(w, r, "invalid API key")
		case errors.Is(err, sensor.ErrValidation):
			h.recordRejected("http", "validation")
			response.BadRequest(w, r, err.Error())
		default:
			h.recordRejected("http", "storage")
			response.InternalError(w, r, "sample could not be stored")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAccepted("http")
	}
	response.Created(w, r, "", sample)
}

// Latest handles GET /sensor/latest - the most recently stored sample among
// the caller's devices. 204 when there is no data.
func (h *SensorHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	sample, err := h.samples.Latest(r.Context(), ident.DeviceIDs, r.URL.Query().Get("device_id"))
	if err != nil {
		response.InternalError(w, r, "sample read failed")
		return
	}
	if sample == nil {
		response.NoContent(w, r)
		return
	}

	response.JSON(w, r, http.StatusOK, sample)
}

// Window handles GET /sensor - sample history for the caller's devices with
// optional since/until RFC3339 bounds.
func (h *SensorHandler) Window(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	since, err := parseTimeParam(r, "since")
	if err != nil {
		response.BadRequest(w, r, "since must be an RFC3339 timestamp")
		return
	}
	until, err := parseTimeParam(r, "until")
	if err != nil {
		response.BadRequest(w, r, "until must be an RFC3339 timestamp")
		return
	}

	samples, err := h.samples.Window(r.Context(), ident.DeviceIDs, r.URL.Query().Get("device_id"), since, until)
	if err != nil {
		response.InternalError(w, r, "sample read failed")
		return
	}
	if samples == nil {
		samples = []sensor.Sample{}
	}

	response.JSON(w, r, http.StatusOK, samples)
}

// Day handles GET /sensor/day - one day's chart series for the caller's
// devices. The optional date parameter is a UTC calendar date (2006-01-02)
// defaulting to today; the bucket is the half-open day [00:00, 24:00).
func (h *SensorHandler) Day(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.BadRequest(w, r, "date must be a calendar date (2006-01-02)")
			return
		}
		day = parsed
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	series, err := h.summaries.DaySeries(r.Context(), ident.DeviceIDs, r.URL.Query().Get("device_id"), dayStart, dayEnd)
	if err != nil {
		response.InternalError(w, r, "series computation failed")
		return
	}

	response.JSON(w, r, http.StatusOK, series)
}

func (h *SensorHandler) recordRejected(source, reason string) {
	if h.metrics != nil {
		h.metrics.RecordRejected(source, reason)
	}
}

// parseTimeParam parses an optional RFC3339 query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
