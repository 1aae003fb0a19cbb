package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/response"
	"github.com/gravadigital/billetterie-api/internal/services"
)

type BookerHandler struct {
	bookers *services.BookerService
	baseURL string
	log     *log.Logger
}

func NewBookerHandler(bookers *services.BookerService, baseURL string) *BookerHandler {
	return &BookerHandler{bookers: bookers, baseURL: baseURL, log: logger.Handler("booker")}
}

// SignUp handles POST /api/bookers
func (h *BookerHandler) SignUp(c *gin.Context) {
	var req services.BookerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	booker, err := h.bookers.SignUp(c.Request.Context(), req, requestBaseURL(c, h.baseURL))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.SuccessResponse(c, http.StatusCreated, "Booker registered, check your email", gin.H{
		"email":     booker.Email,
		"signature": booker.EmailSignature,
	})
}

// CheckReturning handles POST /api/bookers/check-returning
func (h *BookerHandler) CheckReturning(c *gin.Context) {
	var req services.CheckReturningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	if err := h.bookers.CheckReturning(c.Request.Context(), req, requestBaseURL(c, h.baseURL)); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.NoContent(c)
}

// Booking handles GET /api/bookings/:signature
func (h *BookerHandler) Booking(c *gin.Context) {
	view, err := h.bookers.Booking(c.Request.Context(), c.Param("signature"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", view)
}

// CheckInSheet handles GET /api/admin/bookings/:signature
func (h *BookerHandler) CheckInSheet(c *gin.Context) {
	view, err := h.bookers.CheckInSheet(c.Request.Context(), c.Param("signature"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", view)
}

// ListBookers handles GET /api/admin/bookers
func (h *BookerHandler) ListBookers(c *gin.Context) {
	bookers, err := h.bookers.ListBookers(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", bookers)
}

// GetBooker handles GET /api/admin/bookers/:email
func (h *BookerHandler) GetBooker(c *gin.Context) {
	booker, err := h.bookers.GetBooker(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", booker)
}

// AddBooker handles POST /api/admin/bookers
func (h *BookerHandler) AddBooker(c *gin.Context) {
	var req services.BookerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	booker, err := h.bookers.AddBooker(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "Booker added", booker)
}

// UpdateBooker handles PUT /api/admin/bookers/:email
func (h *BookerHandler) UpdateBooker(c *gin.Context) {
	var req services.UpdateBookerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	booker, err := h.bookers.UpdateBooker(c.Request.Context(), c.Param("email"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "Booker updated", booker)
}
