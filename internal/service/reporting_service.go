package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
	"github.com/openlearn/lms-api/pkg/export"
)

const reportCacheTTL = 2 * time.Minute

type reportingRepository interface {
	CompletionFunnel(ctx context.Context, courseID string) (*models.CompletionFunnel, error)
	LearnerRows(ctx context.Context, courseID string) ([]models.LearnerReportRow, error)
	InstructorOverview(ctx context.Context, ownerID string) ([]models.InstructorOverviewRow, error)
}

// ExportResult is a rendered report ready to stream to the client.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ReportingService serves instructor-facing analytics and exports.
type ReportingService struct {
	repo    reportingRepository
	courses courseReader
	cache   *CacheService
	csv     *export.CSVExporter
	xlsx    *export.XLSXExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewReportingService constructs ReportingService.
func NewReportingService(repo reportingRepository, courses courseReader, cache *CacheService, logger *zap.Logger) *ReportingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportingService{
		repo:    repo,
		courses: courses,
		cache:   cache,
		csv:     export.NewCSVExporter(),
		xlsx:    export.NewXLSXExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// Funnel returns the completion funnel for a course the actor owns.
func (s *ReportingService) Funnel(ctx context.Context, actor Permissions, courseID string) (*models.CompletionFunnel, error) {
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}

	key := "reports:funnel:" + courseID
	var cached models.CompletionFunnel
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	funnel, err := s.repo.CompletionFunnel(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load funnel")
	}
	if err := s.cache.Set(ctx, key, funnel, reportCacheTTL); err != nil {
		s.logger.Debug("funnel cache write failed", zap.Error(err))
	}
	return funnel, nil
}

// Learners returns the per-learner standing for a course the actor owns.
func (s *ReportingService) Learners(ctx context.Context, actor Permissions, courseID string) ([]models.LearnerReportRow, error) {
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	rows, err := s.repo.LearnerRows(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner report")
	}
	if rows == nil {
		rows = []models.LearnerReportRow{}
	}
	return rows, nil
}

// Overview rolls up every course the actor owns.
func (s *ReportingService) Overview(ctx context.Context, actor Permissions) ([]models.InstructorOverviewRow, error) {
	if !actor.HasRole(models.RoleInstructor, models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors have reporting dashboards")
	}

	key := "reports:overview:" + actor.UserID
	var cached []models.InstructorOverviewRow
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.repo.InstructorOverview(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overview")
	}
	if rows == nil {
		rows = []models.InstructorOverviewRow{}
	}
	if err := s.cache.Set(ctx, key, rows, reportCacheTTL); err != nil {
		s.logger.Debug("overview cache write failed", zap.Error(err))
	}
	return rows, nil
}

// ExportLearners renders the learner report in the requested format.
// Supported formats are csv, xlsx and pdf.
func (s *ReportingService) ExportLearners(ctx context.Context, actor Permissions, courseID, format string) (*ExportResult, error) {
	course, err := s.ownedCourse(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.LearnerRows(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner report")
	}

	data := learnerDataset(rows)
	stamp := time.Now().UTC().Format("20060102")

	switch format {
	case "csv", "":
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: fmt.Sprintf("learners-%s.csv", stamp)}, nil
	case "xlsx":
		content, err := s.xlsx.Render(data, "Learners")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render xlsx")
		}
		return &ExportResult{Content: content, ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Filename: fmt.Sprintf("learners-%s.xlsx", stamp)}, nil
	case "pdf":
		content, err := s.pdf.Render(data, "Learner Report: "+course.Title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: fmt.Sprintf("learners-%s.pdf", stamp)}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *ReportingService) ownedCourse(ctx context.Context, actor Permissions, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !actor.Owns(course.CreatedBy) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may view reports")
	}
	return course, nil
}

func learnerDataset(rows []models.LearnerReportRow) export.Dataset {
	data := export.Dataset{
		Headers: []string{"Name", "Email", "Completed Lessons", "Total Lessons", "Completion %", "High Score", "Points"},
	}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Name":              row.FullName,
			"Email":             row.Email,
			"Completed Lessons": strconv.Itoa(row.CompletedLessons),
			"Total Lessons":     strconv.Itoa(row.TotalLessons),
			"Completion %":      strconv.FormatFloat(row.Percentage, 'f', 2, 64),
			"High Score":        strconv.Itoa(row.HighScore),
			"Points":            strconv.FormatInt(row.TotalPoints, 10),
		})
	}
	return data
}
