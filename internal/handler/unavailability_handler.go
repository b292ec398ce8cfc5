package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/service"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
	"github.com/campushq/timetable-api/pkg/response"
)

// UnavailabilityHandler manages teacher unavailability endpoints. Teachers
// may only manage their own blocks; admins may manage anyone's.
type UnavailabilityHandler struct {
	service *service.UnavailabilityService
}

// NewUnavailabilityHandler constructs handler.
func NewUnavailabilityHandler(svc *service.UnavailabilityService) *UnavailabilityHandler {
	return &UnavailabilityHandler{service: svc}
}

// List godoc
// @Summary List a teacher's unavailability blocks
// @Tags Unavailability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param dayOfWeek query string false "Filter by day"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/unavailability [get]
func (h *UnavailabilityHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	day := models.DayOfWeek(strings.ToUpper(c.Query("dayOfWeek")))
	blocks, err := h.service.List(c.Request.Context(), claims.SchoolID, c.Param("id"), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// Create godoc
// @Summary Create an unavailability block
// @Tags Unavailability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.UpsertUnavailabilityRequest true "Block payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/{id}/unavailability [post]
func (h *UnavailabilityHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	teacherID := c.Param("id")
	if !canManageTeacher(claims, teacherID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	var req service.UpsertUnavailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	block, err := h.service.Create(c.Request.Context(), claims.SchoolID, teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// Update godoc
// @Summary Update an unavailability block
// @Tags Unavailability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param blockId path string true "Block ID"
// @Param payload body service.UpsertUnavailabilityRequest true "Block payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/{id}/unavailability/{blockId} [put]
func (h *UnavailabilityHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	teacherID := c.Param("id")
	if !canManageTeacher(claims, teacherID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	var req service.UpsertUnavailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	block, err := h.service.Update(c.Request.Context(), c.Param("blockId"), claims.SchoolID, teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, block, nil)
}

// Delete godoc
// @Summary Delete an unavailability block
// @Tags Unavailability
// @Param id path string true "Teacher ID"
// @Param blockId path string true "Block ID"
// @Success 204
// @Router /teachers/{id}/unavailability/{blockId} [delete]
func (h *UnavailabilityHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	teacherID := c.Param("id")
	if !canManageTeacher(claims, teacherID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("blockId"), claims.SchoolID, teacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func canManageTeacher(claims *models.JWTClaims, teacherID string) bool {
	if claims.Role == models.RoleAdmin {
		return true
	}
	return claims.Role == models.RoleTeacher && claims.TeacherID == teacherID
}
