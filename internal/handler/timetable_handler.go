package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/timetable-api/internal/middleware"
	"github.com/campushq/timetable-api/internal/service"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
	"github.com/campushq/timetable-api/pkg/response"
)

// TimetableHandler serves assembled weekly timetable views and exports.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// ForClass godoc
// @Summary Weekly timetable for a class
// @Tags Timetables
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/classes/{id} [get]
func (h *TimetableHandler) ForClass(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	timetable, cacheHit, err := h.service.ForClass(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, timetable, nil, middleware.ExtractMeta(c))
}

// ForTeacher godoc
// @Summary Weekly timetable for a teacher
// @Tags Timetables
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/teachers/{id} [get]
func (h *TimetableHandler) ForTeacher(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	timetable, cacheHit, err := h.service.ForTeacher(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, timetable, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export a weekly timetable
// @Tags Timetables
// @Produce application/octet-stream
// @Param id path string true "Target ID"
// @Param format query string false "Export format" Enums(csv, pdf) default(csv)
// @Success 200 {file} binary
// @Router /timetables/classes/{id}/export [get]
func (h *TimetableHandler) Export(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		format := c.DefaultQuery("format", "csv")

		result, err := h.service.Export(c.Request.Context(), claims.SchoolID, kind, c.Param("id"), format)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		c.Data(http.StatusOK, result.ContentType, result.Content)
	}
}
