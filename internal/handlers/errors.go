package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/response"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

// respondError maps domain errors to HTTP statuses
func respondError(c *gin.Context, l *log.Logger, err error) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorResponseWithDetails(c, http.StatusBadRequest, "Validation failed", verr.Fields)
	case errors.Is(err, common.ErrNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, common.ErrCapacityExceeded):
		response.ConflictError(c, common.ErrCapacityExceeded.Error())
	case errors.Is(err, common.ErrDuplicateRegistration):
		response.ConflictError(c, common.ErrDuplicateRegistration.Error())
	case errors.Is(err, common.ErrConflict):
		response.ConflictError(c, err.Error())
	default:
		l.Error("Request failed", "path", c.FullPath(), "error", err)
		response.InternalServerError(c, "Internal server error")
	}
}

func invalidPayload(c *gin.Context, err error) {
	response.ErrorResponseWithDetails(c, http.StatusBadRequest, "Invalid request payload", err.Error())
}

// uuidParam parses a path parameter, answering 400 when it is not a UUID
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := validation.ParseUUID(c.Param(name), name)
	if err != nil {
		var verr *common.ValidationError
		errors.As(err, &verr)
		response.ErrorResponseWithDetails(c, http.StatusBadRequest, "Validation failed", verr.Fields)
		return uuid.Nil, false
	}
	return id, true
}

// requestBaseURL returns the configured public URL, or the one the request was made to
func requestBaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(forwarded, ",")[0]))
	}
	return scheme + "://" + c.Request.Host
}
