package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/scout-api/internal/api/shared"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"github.com/phrazzld/scout-api/internal/service"
)

// PresetHandler handles criteria preset HTTP requests
type PresetHandler struct {
	presetService service.PresetService
	logger        *slog.Logger
}

// NewPresetHandler creates a new PresetHandler
func NewPresetHandler(presetService service.PresetService, logger *slog.Logger) *PresetHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PresetHandler")
	}

	return &PresetHandler{
		presetService: presetService,
		logger:        logger.With(slog.String("component", "preset_handler")),
	}
}

// Routes returns the preset routes, to be mounted at /api/presets.
func (h *PresetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListPresets)
	r.Post("/", h.CreatePreset)
	r.Put("/active", h.SetActivePreset)
	r.Patch("/{id}", h.UpdatePreset)
	r.Delete("/{id}", h.DeletePreset)
	return r
}

// ListPresets handles GET /api/presets requests
func (h *PresetHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	list, err := h.presetService.ListPresets(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list presets")
		return
	}

	response := PresetListResponse{
		Presets:  make([]PresetResponse, 0, len(list.Presets)),
		ActiveID: list.ActiveID,
	}
	for _, preset := range list.Presets {
		response.Presets = append(response.Presets, presetToResponse(preset))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// CreatePreset handles POST /api/presets requests
func (h *PresetHandler) CreatePreset(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreatePresetRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}

	preset, err := h.presetService.CreatePreset(r.Context(), req.Name, req.Criteria)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create preset")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, presetToResponse(preset))
}

// UpdatePreset handles PATCH /api/presets/{id} requests.
// Name and criteria are applied independently; either may be omitted.
func (h *PresetHandler) UpdatePreset(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id := chi.URLParam(r, "id")

	var req UpdatePresetRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}

	var (
		preset *domain.CriteriaPreset
		err    error
	)
	if req.Name != nil {
		preset, err = h.presetService.RenamePreset(r.Context(), id, *req.Name)
		if err != nil {
			HandleAPIError(w, r, err, "Failed to update preset")
			return
		}
	}
	if req.Criteria != nil {
		preset, err = h.presetService.UpdatePresetCriteria(r.Context(), id, *req.Criteria)
		if err != nil {
			HandleAPIError(w, r, err, "Failed to update preset")
			return
		}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, presetToResponse(preset))
}

// DeletePreset handles DELETE /api/presets/{id} requests
func (h *PresetHandler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := h.presetService.DeletePreset(r.Context(), chi.URLParam(r, "id")); err != nil {
		HandleAPIError(w, r, err, "Failed to delete preset")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetActivePreset handles PUT /api/presets/active requests
func (h *PresetHandler) SetActivePreset(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SetActivePresetRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}

	if err := h.presetService.SetActivePreset(r.Context(), req.ID); err != nil {
		HandleAPIError(w, r, err, "Failed to set active preset")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
