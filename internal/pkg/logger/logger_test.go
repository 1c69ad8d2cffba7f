package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "console output",
			config:  &Config{Level: "info", Format: "console", Output: "console"},
			wantErr: false,
		},
		{
			name: "file output",
			config: &Config{
				Level:  "debug",
				Format: "json",
				Output: "file",
				File:   FileConfig{Filename: filepath.Join(dir, "a.log"), MaxSize: 10, MaxAge: 7, MaxBackups: 3},
			},
			wantErr: false,
		},
		{
			name:    "invalid level",
			config:  &Config{Level: "loud", Format: "json", Output: "console"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  &Config{Level: "info", Format: "xml", Output: "console"},
			wantErr: true,
		},
		{
			name:    "file output without filename",
			config:  &Config{Level: "info", Format: "json", Output: "both"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l.Logger)
			l.Info("hello", zap.String("k", "v"))
		})
	}
}

func TestContextIDs(t *testing.T) {
	ctx := WithFileID(WithRequestID(context.Background(), "req-1"), "file-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "file-1", GetFileID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))

	l := Nop()
	assert.Same(t, l, l.WithContext(context.Background()))
	assert.NotSame(t, l, l.WithContext(ctx))
}

func TestOrGlobal(t *testing.T) {
	l := Nop()
	assert.Same(t, l, OrGlobal(l))
	assert.NotNil(t, OrGlobal(nil))
}

func TestGinLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinLogger(Nop()), GinRecovery(Nop()))

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "fixed-id", seen)
	assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
