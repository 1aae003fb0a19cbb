package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/response"
	"github.com/gravadigital/billetterie-api/internal/services"
)

// maxImageSize bounds event image uploads
const maxImageSize = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

type EventHandler struct {
	events *services.EventService
	log    *log.Logger
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events, log: logger.Handler("event")}
}

// CreateEvent handles POST /api/admin/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req services.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	ev, err := h.events.CreateEvent(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "Event created", ev)
}

// GetAllEvents handles GET /api/admin/events
func (h *EventHandler) GetAllEvents(c *gin.Context) {
	events, err := h.events.GetAllEvents(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", events)
}

// GetActiveEvent handles GET /api/events/active
func (h *EventHandler) GetActiveEvent(c *gin.Context) {
	ev, err := h.events.GetActiveEvent(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", ev)
}

// GetEvent handles GET /api/admin/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ev, err := h.events.GetEventByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", ev)
}

// UpdateEvent handles PUT /api/admin/events/:id
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	ev, err := h.events.UpdateEvent(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "Event updated", ev)
}

// ActivateEvent handles POST /api/admin/events/:id/activate
func (h *EventHandler) ActivateEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ev, err := h.events.SetActive(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "Event activated", ev)
}

// DeleteEvent handles DELETE /api/admin/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.events.DeleteEvent(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.NoContent(c)
}

// GetEventStatus handles GET /api/admin/events/:id/status[?status=OPEN|WAITING_LIST|CLOSED]
func (h *EventHandler) GetEventStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var filter *event.RegistrationStatus
	if raw := c.Query("status"); raw != "" {
		st, valid := event.StatusFromString(raw)
		if !valid {
			respondError(c, h.log, common.NewValidationError("status", "must be one of OPEN, WAITING_LIST, CLOSED"))
			return
		}
		filter = &st
	}

	status, err := h.events.GetEventStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if filter != nil {
		kept := status.Activities[:0]
		for _, a := range status.Activities {
			if a.Status == *filter {
				kept = append(kept, a)
			}
		}
		status.Activities = kept
	}
	response.SuccessResponse(c, http.StatusOK, "", status)
}

// CreateActivity handles POST /api/admin/events/:id/activities
func (h *EventHandler) CreateActivity(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	a, err := h.events.CreateActivity(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "Activity created", a)
}

// GetActivity handles GET /api/admin/events/:id/activities/:activityId
func (h *EventHandler) GetActivity(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	activityID, ok := uuidParam(c, "activityId")
	if !ok {
		return
	}

	a, err := h.events.GetActivity(c.Request.Context(), id, activityID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", gin.H{
		"activity":      a,
		"status":        a.Status(),
		"regular_count": a.RegularCount(),
		"waiting_count": a.WaitingCount(),
	})
}

// UpdateActivity handles PUT /api/admin/events/:id/activities/:activityId
func (h *EventHandler) UpdateActivity(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	activityID, ok := uuidParam(c, "activityId")
	if !ok {
		return
	}

	var req services.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	a, err := h.events.UpdateActivity(c.Request.Context(), id, activityID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "Activity updated", a)
}

// DeleteActivity handles DELETE /api/admin/events/:id/activities/:activityId
func (h *EventHandler) DeleteActivity(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	activityID, ok := uuidParam(c, "activityId")
	if !ok {
		return
	}

	if err := h.events.DeleteActivity(c.Request.Context(), id, activityID); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.NoContent(c)
}

// UploadImage handles POST /api/admin/events/:id/image (multipart field "file")
func (h *EventHandler) UploadImage(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.ErrorResponseWithDetails(c, http.StatusBadRequest, "No file provided", err.Error())
		return
	}
	defer file.Close()

	if header.Size > maxImageSize {
		response.ErrorResponseWithDetails(c, http.StatusBadRequest, "File too large", gin.H{"max_size_bytes": maxImageSize})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		response.ErrorResponseWithDetails(c, http.StatusBadRequest, "Unsupported image type", gin.H{"content_type": contentType})
		return
	}

	path, err := h.events.UploadImage(c.Request.Context(), id, file, header.Size, contentType)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "Image uploaded", gin.H{"image_path": path})
}

// GetImage handles GET /img/event/:file
func (h *EventHandler) GetImage(c *gin.Context) {
	obj, err := h.events.GetImage(c.Request.Context(), c.Param("file"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer obj.Body.Close()

	c.Header("Content-Type", obj.ContentType)
	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Header("Cache-Control", "public, max-age=3600")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, obj.Body); err != nil {
		h.log.Warn("Failed to stream image", "file", c.Param("file"), "error", err)
	}
}
