package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// File tracking errors (4000-4099)
	ErrFileNotFound          = 4000
	ErrFileIO                = 4001
	ErrFileDuplicateArtifact = 4002
	ErrRegistrySchema        = 4003
	ErrInvalidTransition     = 4004
	ErrMigrationFailed       = 4005
	ErrLockTimeout           = 4006

	// Analysis errors (4100-4199)
	ErrUnsupportedFileType = 4100
	ErrNoTextExtracted     = 4101
	ErrAnalysisFailed      = 4102
	ErrPromptNotFound      = 4103
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// File tracking errors
	ErrFileNotFound:          {ErrFileNotFound, http.StatusNotFound, "File not found"},
	ErrFileIO:                {ErrFileIO, http.StatusInternalServerError, "File operation failed"},
	ErrFileDuplicateArtifact: {ErrFileDuplicateArtifact, http.StatusConflict, "Duplicate file artifact"},
	ErrRegistrySchema:        {ErrRegistrySchema, http.StatusInternalServerError, "Registry document is unreadable"},
	ErrInvalidTransition:     {ErrInvalidTransition, http.StatusConflict, "Invalid status transition"},
	ErrMigrationFailed:       {ErrMigrationFailed, http.StatusInternalServerError, "Migration failed"},
	ErrLockTimeout:           {ErrLockTimeout, http.StatusServiceUnavailable, "Registry is busy"},

	// Analysis errors
	ErrUnsupportedFileType: {ErrUnsupportedFileType, http.StatusBadRequest, "Unsupported file type"},
	ErrNoTextExtracted:     {ErrNoTextExtracted, http.StatusUnprocessableEntity, "No text could be extracted"},
	ErrAnalysisFailed:      {ErrAnalysisFailed, http.StatusBadGateway, "Analysis failed"},
	ErrPromptNotFound:      {ErrPromptNotFound, http.StatusNotFound, "Prompt not found"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
