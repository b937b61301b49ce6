package handler

import (
	"errors"
	"net/http"

	"labbooking/internal/service"
	"labbooking/pkg/response"

	"github.com/gin-gonic/gin"
)

// mapServiceError translates a service error kind to an HTTP status.
func mapServiceError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := mapServiceError(err)
	c.JSON(code, response.Error(code, err.Error()))
}
