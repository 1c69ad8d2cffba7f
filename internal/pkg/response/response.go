package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
)

// Response is the envelope every endpoint answers with
type Response struct {
	Code    int         `json:"code"`              // 0 on success, otherwise a business code
	Message string      `json:"message,omitempty"` // human readable detail
	Data    interface{} `json:"data"`
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusOK, Response{Code: apperrors.Success, Data: data})
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusCreated, Response{Code: apperrors.Success, Data: data})
}

// Error writes a plain HTTP error
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Response{
		Code:    httpStatus,
		Message: message,
		Data:    struct{}{},
	})
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrBadRequest, message)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrNotFound, message)
}

// HandleError maps an error (AppError or not) to the envelope
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := apperrors.ExtractCode(err)
	c.JSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperrors.FormatError(code, apperrors.GetDetails(err)),
		Data:    struct{}{},
	})
}

// ErrorWithCode answers with a business error code
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	c.JSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperrors.FormatError(code, details...),
		Data:    struct{}{},
	})
}

// ErrorWithData answers with a business error code and a payload
func ErrorWithData(c *gin.Context, code int, data interface{}, details ...string) {
	c.JSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperrors.FormatError(code, details...),
		Data:    data,
	})
}
