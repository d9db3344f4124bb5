package api

import (
	"net/http"
	"testing"

	"github.com/phrazzld/scout-api/internal/api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *testAPI) createPreset(t *testing.T, name, criteria string) PresetResponse {
	t.Helper()
	resp, data := a.do(t, http.MethodPost, "/api/presets",
		map[string]interface{}{"name": name, "criteria": criteria})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", data)
	return decodeBody[PresetResponse](t, data)
}

func TestPresetHandler_CreateAndList(t *testing.T) {
	a := newTestAPI(t)

	created := a.createPreset(t, "Fitness", "fitness coaches")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Fitness", created.Name)

	resp, data := a.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[PresetListResponse](t, data)
	require.Len(t, list.Presets, 1)
	assert.Equal(t, created.ID, list.Presets[0].ID)
	assert.Nil(t, list.ActiveID)
}

func TestPresetHandler_CreateValidation(t *testing.T) {
	a := newTestAPI(t)

	resp, data := a.do(t, http.MethodPost, "/api/presets", map[string]interface{}{"name": "Fitness"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid criteria: required field", decodeBody[shared.ErrorResponse](t, data).Error)

	resp, data = a.do(t, http.MethodPost, "/api/presets",
		map[string]interface{}{"name": "Fitness", "criteria": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid input: preset criteria cannot be empty", decodeBody[shared.ErrorResponse](t, data).Error)
}

func TestPresetHandler_Update(t *testing.T) {
	a := newTestAPI(t)
	created := a.createPreset(t, "Fitness", "fitness coaches")

	resp, data := a.do(t, http.MethodPatch, "/api/presets/"+created.ID, map[string]interface{}{"name": "Gym"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)
	got := decodeBody[PresetResponse](t, data)
	assert.Equal(t, "Gym", got.Name)
	assert.Equal(t, "fitness coaches", got.Criteria)

	resp, data = a.do(t, http.MethodPatch, "/api/presets/"+created.ID,
		map[string]interface{}{"name": "Trainers", "criteria": "personal trainers"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decodeBody[PresetResponse](t, data)
	assert.Equal(t, "Trainers", got.Name)
	assert.Equal(t, "personal trainers", got.Criteria)

	resp, data = a.do(t, http.MethodPatch, "/api/presets/"+created.ID, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation error: name or criteria is required", decodeBody[shared.ErrorResponse](t, data).Error)

	resp, _ = a.do(t, http.MethodPatch, "/api/presets/missing", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPresetHandler_ActiveAndDelete(t *testing.T) {
	a := newTestAPI(t)
	created := a.createPreset(t, "Fitness", "fitness coaches")

	resp, _ := a.do(t, http.MethodPut, "/api/presets/active", map[string]interface{}{"id": created.ID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, data := a.do(t, http.MethodGet, "/api/presets", nil)
	list := decodeBody[PresetListResponse](t, data)
	require.NotNil(t, list.ActiveID)
	assert.Equal(t, created.ID, *list.ActiveID)

	resp, _ = a.do(t, http.MethodPut, "/api/presets/active", map[string]interface{}{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/api/presets/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, data = a.do(t, http.MethodGet, "/api/presets", nil)
	list = decodeBody[PresetListResponse](t, data)
	assert.Empty(t, list.Presets)
	assert.Nil(t, list.ActiveID)

	resp, _ = a.do(t, http.MethodDelete, "/api/presets/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
