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

// LessonHandler manages lesson placement endpoints.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler constructs handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// List godoc
// @Summary List lessons
// @Tags Lessons
// @Produce json
// @Param teacherId query string false "Filter by teacher"
// @Param classId query string false "Filter by class"
// @Param dayOfWeek query string false "Filter by day"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.LessonFilter{
		SchoolID:  claims.SchoolID,
		TeacherID: c.Query("teacherId"),
		ClassID:   c.Query("classId"),
		RoomID:    c.Query("roomId"),
		DayOfWeek: models.DayOfWeek(strings.ToUpper(c.Query("dayOfWeek"))),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}

	lessons, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Get godoc
// @Summary Get a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	lesson, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Check godoc
// @Summary Dry-run conflict check for a placement
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body models.PlacementCandidate true "Candidate placement"
// @Param excludeId query string false "Lesson id to exclude"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/check [post]
func (h *LessonHandler) Check(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var candidate models.PlacementCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid placement payload"))
		return
	}
	candidate.SchoolID = claims.SchoolID

	if err := h.service.CheckPlacement(c.Request.Context(), candidate, c.Query("excludeId")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil)
}

// Create godoc
// @Summary Place a new lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body service.PlaceLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.PlaceLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.service.Create(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Update godoc
// @Summary Update a lesson placement
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.PlaceLessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.PlaceLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.service.Update(c.Request.Context(), c.Param("id"), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Reschedule godoc
// @Summary Move a lesson to a new weekly window (drag/resize)
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.RescheduleLessonRequest true "New window"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id}/reschedule [post]
func (h *LessonHandler) Reschedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RescheduleLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Delete godoc
// @Summary Delete a lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.SchoolID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
