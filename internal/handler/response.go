package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AtoyanMikhail/taskmanager/internal/apperrors"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeDuplicate        = "DUPLICATE_RESOURCE"
	CodeNotFound         = "ENDPOINT_NOT_FOUND"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
	unauthorizedMessage  = "Invalid credentials or token"
	internalErrorMessage = "An unexpected error occurred. Please try again later."
)

func success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, models.APIResponse{
		Success: true,
		Code:    status,
		Message: message,
		Data:    data,
	})
}

func fail(c *gin.Context, status int, message string, details *models.ErrorDetails) {
	c.AbortWithStatusJSON(status, models.APIResponse{
		Success: false,
		Code:    status,
		Message: message,
		Error:   details,
	})
}

// writeError maps an error to its response. Every authentication failure gets the same
// status, code and message whatever its cause.
func writeError(c *gin.Context, l logger.Logger, err error) {
	var validationErr *apperrors.ValidationError

	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		l.Info("Request unauthorized",
			logger.String("path", c.FullPath()),
			logger.Error(err))
		fail(c, http.StatusUnauthorized, unauthorizedMessage, &models.ErrorDetails{Code: CodeUnauthorized})

	case errors.As(err, &validationErr):
		fail(c, http.StatusBadRequest, "Validation failed", &models.ErrorDetails{
			Code:   CodeValidation,
			Fields: validationErr.Fields,
		})

	case errors.Is(err, apperrors.ErrValidation):
		fail(c, http.StatusBadRequest, "Validation failed", &models.ErrorDetails{
			Code:    CodeValidation,
			Details: err.Error(),
		})

	case errors.Is(err, apperrors.ErrConflict):
		fail(c, http.StatusConflict, conflictMessage(err), &models.ErrorDetails{Code: CodeDuplicate})

	default:
		l.Error("Request failed",
			logger.String("path", c.FullPath()),
			logger.Error(err))
		fail(c, http.StatusInternalServerError, internalErrorMessage, &models.ErrorDetails{Code: CodeInternal})
	}
}

// conflictMessage strips the sentinel suffix added by apperrors.Conflict.
func conflictMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+apperrors.ErrConflict.Error())
}
