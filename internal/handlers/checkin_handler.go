package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/response"
	"github.com/gravadigital/billetterie-api/internal/services"
)

type CheckInHandler struct {
	checkins *services.CheckInService
	log      *log.Logger
}

func NewCheckInHandler(checkins *services.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins, log: logger.Handler("checkin")}
}

type CheckInRequest struct {
	ActivityID    uuid.UUID `json:"activity_id" binding:"required"`
	ParticipantID uuid.UUID `json:"participant_id" binding:"required"`
	Checked       bool      `json:"checked"`
}

// CheckIn handles PUT /api/admin/checkin
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	outcome, err := h.checkins.SetCheckedIn(c.Request.Context(), req.ActivityID, req.ParticipantID, req.Checked)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	message := "Participant successfully checked in"
	if !outcome.CheckedIn {
		message = "Participant check-in removed"
	}
	response.SuccessResponse(c, http.StatusOK, message, outcome)
}
