package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"not found", apperrors.NewNotFoundError("abc"), http.StatusNotFound, apperrors.ErrFileNotFound},
		{"transition", fmt.Errorf("x: %w", apperrors.New(apperrors.ErrInvalidTransition)), http.StatusConflict, apperrors.ErrInvalidTransition},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, apperrors.ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(func(c *gin.Context) { HandleError(c, tt.err) })
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w).Code)
		})
	}
}

func TestSuccessWrapsData(t *testing.T) {
	w := serve(func(c *gin.Context) { Success(c, gin.H{"id": "x"}) })

	resp := decode(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, map[string]interface{}{"id": "x"}, resp.Data)
}
