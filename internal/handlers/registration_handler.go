package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/response"
	"github.com/gravadigital/billetterie-api/internal/services"
)

type RegistrationHandler struct {
	registrations *services.RegistrationService
	baseURL       string
	log           *log.Logger
}

func NewRegistrationHandler(registrations *services.RegistrationService, baseURL string) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		baseURL:       baseURL,
		log:           logger.Handler("registration"),
	}
}

// RegisterParticipant handles POST /api/activities/:activityId/participants
func (h *RegistrationHandler) RegisterParticipant(c *gin.Context) {
	activityID, ok := uuidParam(c, "activityId")
	if !ok {
		return
	}

	var req services.RegistrationSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	outcome, err := h.registrations.RegisterParticipant(c.Request.Context(), activityID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	message := "Participant registered"
	if outcome.Waiting {
		message = "Participant added to the waiting list"
	}
	response.SuccessResponse(c, http.StatusCreated, message, outcome)
}

// RegisterParticipants handles POST /api/events/:id/registrations
func (h *RegistrationHandler) RegisterParticipants(c *gin.Context) {
	eventID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.BatchSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	outcome, err := h.registrations.RegisterParticipants(c.Request.Context(), eventID, req, requestBaseURL(c, h.baseURL))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.SuccessResponse(c, http.StatusOK, "Registrations processed", outcome)
}

// RemoveParticipant handles DELETE /api/activities/:activityId/participants
func (h *RegistrationHandler) RemoveParticipant(c *gin.Context) {
	activityID, ok := uuidParam(c, "activityId")
	if !ok {
		return
	}

	var req services.ParticipantSelector
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	if err := h.registrations.RemoveParticipant(c.Request.Context(), activityID, req); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.NoContent(c)
}

// RemoveRegistration handles DELETE /api/admin/activities/:activityId/participants/:participantId
func (h *RegistrationHandler) RemoveRegistration(c *gin.Context) {
	activityID, ok := uuidParam(c, "activityId")
	if !ok {
		return
	}
	participantID, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}

	if err := h.registrations.RemoveRegistration(c.Request.Context(), activityID, participantID); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.NoContent(c)
}
