package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app/apptest"
	"github.com/budapestmetrodisplay/metrodisplay/internal/models"
)

func TestSendResponse(t *testing.T) {
	api, _ := createTestApi(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	api.sendResponse(w, r, models.NewEntryResponse(map[string]string{"test": "data"}, api.Clock))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var decoded models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, http.StatusOK, decoded.Code)
	assert.Equal(t, "OK", decoded.Text)
	assert.Equal(t, 2, decoded.Version)
	assert.Equal(t, apptest.Start.UnixMilli(), decoded.CurrentTime)
}

func TestSendError(t *testing.T) {
	api, _ := createTestApi(t)

	tests := []struct {
		name string
		send func(w http.ResponseWriter, r *http.Request)
		code int
		text string
	}{
		{
			name: "not found",
			send: api.sendNotFound,
			code: http.StatusNotFound,
			text: "resource not found",
		},
		{
			name: "unauthorized",
			send: api.sendUnauthorized,
			code: http.StatusUnauthorized,
			text: "permission denied",
		},
		{
			name: "custom",
			send: func(w http.ResponseWriter, r *http.Request) {
				api.sendError(w, r, http.StatusBadRequest, "bad route id")
			},
			code: http.StatusBadRequest,
			text: "bad route id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.send(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.code, w.Code)
			var decoded models.ResponseModel
			require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
			assert.Equal(t, tt.code, decoded.Code)
			assert.Equal(t, tt.text, decoded.Text)
			assert.Nil(t, decoded.Data)
		})
	}
}

func TestServerErrorResponse(t *testing.T) {
	api, _ := createTestApi(t)

	w := httptest.NewRecorder()
	api.serverErrorResponse(w, httptest.NewRequest(http.MethodGet, "/test", nil), assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}
