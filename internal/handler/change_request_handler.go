package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/service"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
	"github.com/campushq/timetable-api/pkg/response"
)

// ChangeRequestHandler manages the schedule change request workflow.
type ChangeRequestHandler struct {
	service *service.ChangeRequestService
}

// NewChangeRequestHandler constructs handler.
func NewChangeRequestHandler(svc *service.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{service: svc}
}

type rejectChangeRequestPayload struct {
	AdminNotes string `json:"admin_notes"`
}

// List godoc
// @Summary List schedule change requests
// @Tags Change Requests
// @Produce json
// @Param status query string false "Filter by status"
// @Param lessonId query string false "Filter by lesson"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /change-requests [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.ChangeRequestFilter{
		SchoolID: claims.SchoolID,
		LessonID: c.Query("lessonId"),
		Status:   models.ChangeRequestStatus(strings.ToUpper(c.Query("status"))),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	requests, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get a change request
// @Tags Change Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /change-requests/{id} [get]
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Submit godoc
// @Summary Submit a schedule change request
// @Tags Change Requests
// @Accept json
// @Produce json
// @Param payload body service.SubmitChangeRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /change-requests [post]
func (h *ChangeRequestHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.TeacherID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only teachers may submit change requests"))
		return
	}
	var req service.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.service.Submit(c.Request.Context(), claims.SchoolID, claims.TeacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Cancel godoc
// @Summary Cancel a pending change request
// @Tags Change Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests/{id}/cancel [post]
func (h *ChangeRequestHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.SchoolID, claims.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a pending change request
// @Tags Change Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests/{id}/approve [post]
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.SchoolID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a pending change request
// @Tags Change Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body rejectChangeRequestPayload true "Admin notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests/{id}/reject [post]
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload rejectChangeRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), claims.SchoolID, claims.UserID, payload.AdminNotes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
