package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vitalink/vitalink/internal/api/response"
	"github.com/vitalink/vitalink/internal/sensor"
)

// AdminHandler handles debug/admin endpoints. These bypass the device-set
// authorization filter and are only mounted when DEBUG_ENDPOINTS=true.
type AdminHandler struct {
	samples *sensor.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(samples *sensor.Service) *AdminHandler {
	return &AdminHandler{samples: samples}
}

// ListSamples handles GET /admin/sensor - every stored sample, unfiltered.
func (h *AdminHandler) ListSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := h.samples.All(r.Context())
	if err != nil {
		response.InternalError(w, r, "sample read failed")
		return
	}
	if samples == nil {
		samples = []sensor.Sample{}
	}

	response.JSON(w, r, http.StatusOK, samples)
}

// DeleteSample handles DELETE /admin/sensor/{id} - remove one sample by
// sequence number.
func (h *AdminHandler) DeleteSample(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, r, "id must be an integer sequence number")
		return
	}

	if err := h.samples.Delete(r.Context(), seq); err != nil {
		if errors.Is(err, sensor.ErrSampleNotFound) {
			response.NotFound(w, r, "sample not found")
			return
		}
		response.InternalError(w, r, "sample delete failed")
		return
	}

	response.NoContent(w, r)
}
