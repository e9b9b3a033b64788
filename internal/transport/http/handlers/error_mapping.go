package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/usecase"
)

const codeInternal = "INTERNAL_ERROR"

// RespondWithAuthzError writes the status-equivalent of a typed engine error.
// Infrastructure failures keep their code but never expose the underlying cause.
func RespondWithAuthzError(c *gin.Context, log *zap.Logger, err error, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	authzErr, ok := usecase.AsAuthzError(err)
	if !ok {
		log.Error(fallbackMessage, zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, codeInternal, fallbackMessage, nil))
		return
	}

	if authzErr.Validation() {
		log.Debug("request rejected", zap.String("code", string(authzErr.Code)), zap.String("message", authzErr.Message))
	} else {
		log.Error(fallbackMessage, zap.String("code", string(authzErr.Code)), zap.Error(err))
		_ = c.Error(err)
	}

	c.JSON(authzErr.Status(), NewErrorResponse(c, string(authzErr.Code), authzErr.Message, authzErr.Details))
}
