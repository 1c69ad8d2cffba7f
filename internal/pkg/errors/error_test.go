package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := New(ErrFileNotFound, "abc")
	wrapped := Wrap(fmt.Errorf("lookup: %w", inner), ErrFileIO)

	assert.Equal(t, ErrFileNotFound, wrapped.Code)
	assert.True(t, Is(wrapped, ErrFileNotFound))
	assert.Equal(t, "abc", GetDetails(wrapped))
}

func TestWrapUnderlying(t *testing.T) {
	err := NewIOError(fs.ErrPermission, "rename")

	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, fs.ErrPermission))
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Contains(t, err.Error(), "[4001]")
	assert.Nil(t, Wrap(nil, ErrFileIO))
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", New(ErrInvalidTransition), ErrInvalidTransition},
		{"wrapped app error", fmt.Errorf("x: %w", New(ErrPromptNotFound)), ErrPromptNotFound},
		{"plain error", stderrors.New("boom"), ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "File not found", FormatError(ErrFileNotFound))
	assert.Equal(t, "File not found: x.pdf", FormatError(ErrFileNotFound, "x.pdf"))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(ErrNoTextExtracted))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(99999))
	assert.True(t, IsClientError(ErrInvalidTransition))
}
