package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popanda44/seedvalidator-finance/internal/database"
	"github.com/popanda44/seedvalidator-finance/internal/middleware"
	"github.com/popanda44/seedvalidator-finance/internal/services"
	"github.com/popanda44/seedvalidator-finance/internal/utils"
)

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case utils.IsValidationError(err):
		body := gin.H{"error": err.Error()}
		if verr, _ := utils.AsValidationError(err); verr.Field != "" {
			body["field"] = verr.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, database.ErrNoObservations):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		middleware.RecordError(c, err, "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondInvalid(c *gin.Context, details []FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid request",
		"details": details,
	})
}
