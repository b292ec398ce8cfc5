package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
	"github.com/campushq/timetable-api/pkg/export"
)

// TimetableEntry is one slot in a weekly timetable view.
type TimetableEntry struct {
	LessonID  string           `json:"lesson_id"`
	SubjectID string           `json:"subject_id"`
	ClassID   string           `json:"class_id"`
	TeacherID string           `json:"teacher_id"`
	RoomID    *string          `json:"room_id,omitempty"`
	StartTime models.ClockTime `json:"start_time"`
	EndTime   models.ClockTime `json:"end_time"`
}

// WeeklyTimetable groups a schedule by day of week, Monday first.
type WeeklyTimetable struct {
	SchoolID string                                `json:"school_id"`
	Days     map[models.DayOfWeek][]TimetableEntry `json:"days"`
}

// ExportResult carries rendered timetable bytes and response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// TimetableService assembles weekly views of the lesson table for classes
// and teachers, caching the assembled view per school. Any lesson write in a
// school flushes the school's cached views.
type TimetableService struct {
	lessons lessonRepository
	cache   *CacheService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	ttl     time.Duration
	logger  *zap.Logger
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(lessons lessonRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		lessons: lessons,
		cache:   cache,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		ttl:     ttl,
		logger:  logger,
	}
}

// ForClass returns the weekly timetable of a class. The second return value
// reports whether the view was served from cache.
func (s *TimetableService) ForClass(ctx context.Context, schoolID, classID string) (*WeeklyTimetable, bool, error) {
	return s.assemble(ctx, schoolID, "class", classID, models.LessonFilter{SchoolID: schoolID, ClassID: classID})
}

// ForTeacher returns the weekly timetable of a teacher.
func (s *TimetableService) ForTeacher(ctx context.Context, schoolID, teacherID string) (*WeeklyTimetable, bool, error) {
	return s.assemble(ctx, schoolID, "teacher", teacherID, models.LessonFilter{SchoolID: schoolID, TeacherID: teacherID})
}

// InvalidateSchool flushes every cached timetable view for a school. Called
// after any lesson write.
func (s *TimetableService) InvalidateSchool(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("timetable:%s:*", schoolID)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("school_id", schoolID), zap.Error(err))
	}
}

// Export renders a class or teacher timetable as CSV or PDF.
func (s *TimetableService) Export(ctx context.Context, schoolID, kind, id, format string) (*ExportResult, error) {
	var (
		timetable *WeeklyTimetable
		err       error
	)
	switch kind {
	case "class":
		timetable, _, err = s.ForClass(ctx, schoolID, id)
	case "teacher":
		timetable, _, err = s.ForTeacher(ctx, schoolID, id)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timetable kind")
	}
	if err != nil {
		return nil, err
	}

	dataset := datasetFromTimetable(timetable)
	switch format {
	case "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: fmt.Sprintf("timetable-%s.csv", id)}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Weekly timetable %s", id))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: fmt.Sprintf("timetable-%s.pdf", id)}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *TimetableService) assemble(ctx context.Context, schoolID, kind, id string, filter models.LessonFilter) (*WeeklyTimetable, bool, error) {
	cacheKey := fmt.Sprintf("timetable:%s:%s:%s", schoolID, kind, id)
	if s.cache != nil {
		var cached WeeklyTimetable
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	filter.PageSize = 200
	lessons, _, err := s.lessons.List(ctx, filter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}

	timetable := &WeeklyTimetable{SchoolID: schoolID, Days: make(map[models.DayOfWeek][]TimetableEntry)}
	for _, lesson := range lessons {
		entry := TimetableEntry{
			LessonID:  lesson.ID,
			SubjectID: lesson.SubjectID,
			ClassID:   lesson.ClassID,
			TeacherID: lesson.TeacherID,
			RoomID:    lesson.RoomID,
			StartTime: lesson.StartTime,
			EndTime:   lesson.EndTime,
		}
		timetable.Days[lesson.DayOfWeek] = append(timetable.Days[lesson.DayOfWeek], entry)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, timetable, s.ttl); err != nil {
			s.logger.Warn("failed to cache timetable", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return timetable, false, nil
}

var exportDayOrder = []models.DayOfWeek{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday, models.Saturday, models.Sunday}

func datasetFromTimetable(timetable *WeeklyTimetable) export.Dataset {
	headers := []string{"Day", "Start", "End", "Subject", "Class", "Teacher", "Room"}
	var rows []map[string]string
	for _, day := range exportDayOrder {
		for _, entry := range timetable.Days[day] {
			room := ""
			if entry.RoomID != nil {
				room = *entry.RoomID
			}
			rows = append(rows, map[string]string{
				"Day":     string(day),
				"Start":   entry.StartTime.String(),
				"End":     entry.EndTime.String(),
				"Subject": entry.SubjectID,
				"Class":   entry.ClassID,
				"Teacher": entry.TeacherID,
				"Room":    room,
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
