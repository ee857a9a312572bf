package server

import (
	"errors"
	"net/http"

	pkgerrors "kdstore/pkg/errors"
	"kdstore/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	CodeInvalidArgument   = "invalid_argument"
	CodeDimensionMismatch = "dimension_mismatch"
	CodeNotFound          = "not_found"
	CodeEmptyIndex        = "empty_index"
	CodeCorruptIndex      = "corrupt_index"
	CodeStorage           = "storage_error"
	CodeUnavailable       = "unavailable"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal"
)

// statusFor maps a domain error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pkgerrors.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, pkgerrors.ErrInvalidIndexName),
		errors.Is(err, pkgerrors.ErrInvalidDimension),
		errors.Is(err, pkgerrors.ErrInvalidTopN):
		return http.StatusBadRequest, CodeInvalidArgument
	case errors.Is(err, pkgerrors.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity, CodeDimensionMismatch
	case errors.Is(err, pkgerrors.ErrIndexNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, pkgerrors.ErrEmptyIndex):
		return http.StatusNotFound, CodeEmptyIndex
	case errors.Is(err, pkgerrors.ErrCorruptIndex):
		return http.StatusInternalServerError, CodeCorruptIndex
	case errors.Is(err, pkgerrors.ErrStorage):
		return http.StatusInternalServerError, CodeStorage
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request error", "path", c.Request.URL.Path, "code", code, "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidArgument})
}
