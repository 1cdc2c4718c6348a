package handler

import (
	"errors"
	"net/http"

	"story-zine/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor переводит ошибку предметной области в HTTP статус.
func statusFor(e *models.Error) int {
	switch e.Kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindValidation:
		return http.StatusUnprocessableEntity
	case models.KindConflict:
		return http.StatusConflict
	case models.KindLimitReached:
		switch e.Code {
		case models.ErrCodeAcceptThresholdNotMet, models.ErrCodeContentTooShort:
			return http.StatusUnprocessableEntity
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func handleServiceError(c *gin.Context, log *zap.Logger, err error) {
	var domainErr *models.Error
	if errors.As(err, &domainErr) && domainErr.Kind != models.KindInternal {
		c.AbortWithStatusJSON(statusFor(domainErr), models.ErrorResponse{Code: domainErr.Code, Message: domainErr.Message})
		return
	}

	log.Error("Unhandled internal error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
		Code:    models.ErrCodeInternal,
		Message: "An unexpected internal error occurred",
	})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: message})
}
