package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
)

// RemoteBackend はPostgreSQLのカタログを使うBackendの実装。
// 取得したコースの表示用テキストはサニタイズしてから返す。
type RemoteBackend struct {
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	profiles    repository.ProfileRepository
	sanitizer   security.ContentSanitizerService
	now         func() time.Time
}

// NewRemoteBackend はRemoteBackendを生成する。
func NewRemoteBackend(
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	profiles repository.ProfileRepository,
	sanitizer security.ContentSanitizerService,
) *RemoteBackend {
	return &RemoteBackend{
		courses:     courses,
		enrollments: enrollments,
		profiles:    profiles,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// ListCourses は全コースを表示順で返す。
func (b *RemoteBackend) ListCourses(ctx context.Context) ([]model.Course, error) {
	courses, err := b.courses.List(ctx)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	for i := range courses {
		courses[i] = b.sanitizer.SanitizeCourse(courses[i])
	}
	return courses, nil
}

// GetCourse は指定IDのコースを返す。存在しない場合はnilを返す。
func (b *RemoteBackend) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	c, err := b.courses.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if c == nil {
		return nil, nil
	}
	sanitized := b.sanitizer.SanitizeCourse(*c)
	return &sanitized, nil
}

// Enroll は受講登録を作成し、プロフィールの受講中コースに追加する。
// プロフィールの更新失敗は受講登録の成功を覆さず、Diagnosticに入れて返す。
func (b *RemoteBackend) Enroll(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error) {
	var result model.Result[*model.Enrollment]

	e := model.NewEnrollment(uuid.New().String(), userID, courseID, b.now())
	if err := b.enrollments.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrReferenceNotFound) {
			return result, model.NewCatalogRejectedError(
				fmt.Sprintf("user %s or course %s does not exist", userID, courseID))
		}
		return result, model.NewBackendUnavailableError(err)
	}

	slog.Info("user enrolled",
		slog.String("enrollment_id", e.ID),
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
	)

	if err := b.profiles.AddEnrolledCourse(ctx, userID, courseID); err != nil {
		slog.Warn("failed to update enrolled courses",
			slog.String("operation", "enroll"),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		result.Diagnostic = fmt.Errorf("failed to update enrolled courses: %w", err)
	}

	result.Value = e
	return result, nil
}

// UpdateProgress は進捗率とlast_updatedを更新する。
// 修了した場合はプロフィールの修了コースに追加する（失敗はログのみ）。
func (b *RemoteBackend) UpdateProgress(ctx context.Context, enrollmentID string, progress int) error {
	e, err := b.enrollments.UpdateProgress(ctx, enrollmentID, progress, b.now())
	if err != nil {
		return model.NewBackendUnavailableError(err)
	}
	if e == nil {
		return model.NewCatalogRejectedError(fmt.Sprintf("enrollment %s does not exist", enrollmentID))
	}

	if e.Completed {
		if err := b.profiles.AddCompletedCourse(ctx, e.UserID, e.CourseID); err != nil {
			slog.Warn("failed to update completed courses",
				slog.String("operation", "update_progress"),
				slog.String("user_id", e.UserID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

var _ Backend = (*RemoteBackend)(nil)
