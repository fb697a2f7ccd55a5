package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
)

// --- モック定義 ---

type mockCourseRepo struct {
	listFn     func(ctx context.Context) ([]model.Course, error)
	findByIDFn func(ctx context.Context, id string) (*model.Course, error)
}

func (m *mockCourseRepo) List(ctx context.Context) ([]model.Course, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockEnrollmentRepo struct {
	createFn         func(ctx context.Context, e *model.Enrollment) error
	updateProgressFn func(ctx context.Context, id string, progress int, now time.Time) (*model.Enrollment, error)
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	if m.createFn != nil {
		return m.createFn(ctx, e)
	}
	return nil
}

func (m *mockEnrollmentRepo) FindByID(_ context.Context, _ string) (*model.Enrollment, error) {
	return nil, nil
}

func (m *mockEnrollmentRepo) UpdateProgress(ctx context.Context, id string, progress int, now time.Time) (*model.Enrollment, error) {
	if m.updateProgressFn != nil {
		return m.updateProgressFn(ctx, id, progress, now)
	}
	return nil, nil
}

type mockProfileRepo struct {
	addEnrolledFn  func(ctx context.Context, userID, courseID string) error
	addCompletedFn func(ctx context.Context, userID, courseID string) error
}

func (m *mockProfileRepo) Create(_ context.Context, _ *model.Profile) error {
	return nil
}

func (m *mockProfileRepo) FindByUserID(_ context.Context, _ string) (*model.Profile, error) {
	return nil, nil
}

func (m *mockProfileRepo) AddEnrolledCourse(ctx context.Context, userID, courseID string) error {
	if m.addEnrolledFn != nil {
		return m.addEnrolledFn(ctx, userID, courseID)
	}
	return nil
}

func (m *mockProfileRepo) AddCompletedCourse(ctx context.Context, userID, courseID string) error {
	if m.addCompletedFn != nil {
		return m.addCompletedFn(ctx, userID, courseID)
	}
	return nil
}

var (
	_ repository.CourseRepository     = (*mockCourseRepo)(nil)
	_ repository.EnrollmentRepository = (*mockEnrollmentRepo)(nil)
	_ repository.ProfileRepository    = (*mockProfileRepo)(nil)
)

func newTestRemote(courses *mockCourseRepo, enrollments *mockEnrollmentRepo, profiles *mockProfileRepo) *RemoteBackend {
	b := NewRemoteBackend(courses, enrollments, profiles, security.NewContentSanitizer())
	b.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return b
}

// --- テスト ---

func TestRemoteBackend_ListCourses_Sanitized(t *testing.T) {
	b := newTestRemote(&mockCourseRepo{listFn: func(context.Context) ([]model.Course, error) {
		return []model.Course{
			{ID: "1", Title: "<b>Go</b> Basics", Description: `<p>ok</p><script>alert(1)</script>`},
		}, nil
	}}, &mockEnrollmentRepo{}, &mockProfileRepo{})

	courses, err := b.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if courses[0].Title != "Go Basics" {
		t.Errorf("Title = %q, want %q", courses[0].Title, "Go Basics")
	}
	if courses[0].Description != "<p>ok</p>" {
		t.Errorf("Description = %q, want %q", courses[0].Description, "<p>ok</p>")
	}
}

func TestRemoteBackend_ListCourses_ErrorIsUnavailable(t *testing.T) {
	b := newTestRemote(&mockCourseRepo{listFn: func(context.Context) ([]model.Course, error) {
		return nil, errors.New("failed to iterate courses: connection reset")
	}}, &mockEnrollmentRepo{}, &mockProfileRepo{})

	_, err := b.ListCourses(context.Background())
	if !model.IsCode(err, model.ErrCodeBackendUnavailable) {
		t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
}

func TestRemoteBackend_GetCourse(t *testing.T) {
	b := newTestRemote(&mockCourseRepo{findByIDFn: func(_ context.Context, id string) (*model.Course, error) {
		if id == "1" {
			return &model.Course{ID: "1", Instructor: "<i>Sarah</i>"}, nil
		}
		return nil, nil
	}}, &mockEnrollmentRepo{}, &mockProfileRepo{})

	c, err := b.GetCourse(context.Background(), "1")
	if err != nil || c == nil {
		t.Fatalf("GetCourse(1) = (%v, %v)", c, err)
	}
	if c.Instructor != "Sarah" {
		t.Errorf("Instructor = %q, want %q", c.Instructor, "Sarah")
	}

	c, err = b.GetCourse(context.Background(), "404")
	if err != nil || c != nil {
		t.Errorf("GetCourse(404) = (%v, %v), want (nil, nil)", c, err)
	}
}

func TestRemoteBackend_Enroll_CreatesRecordAndUpdatesProfile(t *testing.T) {
	var created *model.Enrollment
	var enrolledCourse string
	b := newTestRemote(&mockCourseRepo{},
		&mockEnrollmentRepo{createFn: func(_ context.Context, e *model.Enrollment) error {
			created = e
			return nil
		}},
		&mockProfileRepo{addEnrolledFn: func(_ context.Context, _, courseID string) error {
			enrolledCourse = courseID
			return nil
		}},
	)

	res, err := b.Enroll(context.Background(), "u-1", "2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created == nil || created != res.Value {
		t.Fatal("enrollment was not stored")
	}
	if created.Progress != 0 || created.Completed {
		t.Errorf("enrollment = %+v, want progress 0 and not completed", created)
	}
	if !created.EnrolledAt.Equal(b.now()) {
		t.Errorf("EnrolledAt = %v, want %v", created.EnrolledAt, b.now())
	}
	if enrolledCourse != "2" {
		t.Errorf("profile enrolled course = %q, want %q", enrolledCourse, "2")
	}
	if res.Degraded() {
		t.Errorf("Diagnostic = %v, want nil", res.Diagnostic)
	}
}

func TestRemoteBackend_Enroll_ProfileFailureInDiagnostic(t *testing.T) {
	profileErr := errors.New("profile row locked")
	b := newTestRemote(&mockCourseRepo{}, &mockEnrollmentRepo{},
		&mockProfileRepo{addEnrolledFn: func(context.Context, string, string) error { return profileErr }},
	)

	res, err := b.Enroll(context.Background(), "u-1", "2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Value == nil {
		t.Fatal("expected enrollment value")
	}
	if !errors.Is(res.Diagnostic, profileErr) {
		t.Errorf("Diagnostic = %v, want %v", res.Diagnostic, profileErr)
	}
}

func TestRemoteBackend_Enroll_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"参照先が存在しない", repository.ErrReferenceNotFound, model.ErrCodeRemoteRejected},
		{"接続障害", errors.New("connection refused"), model.ErrCodeBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestRemote(&mockCourseRepo{},
				&mockEnrollmentRepo{createFn: func(context.Context, *model.Enrollment) error { return tt.err }},
				&mockProfileRepo{},
			)

			_, err := b.Enroll(context.Background(), "u-1", "2")
			if got := model.ErrorCode(err); got != tt.wantCode {
				t.Errorf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestRemoteBackend_UpdateProgress(t *testing.T) {
	var completedCourse string
	var gotNow time.Time
	b := newTestRemote(&mockCourseRepo{},
		&mockEnrollmentRepo{updateProgressFn: func(_ context.Context, id string, progress int, now time.Time) (*model.Enrollment, error) {
			gotNow = now
			if id != "e-1" {
				return nil, nil
			}
			return &model.Enrollment{ID: id, UserID: "u-1", CourseID: "3", Progress: progress, Completed: progress == 100}, nil
		}},
		&mockProfileRepo{addCompletedFn: func(_ context.Context, _, courseID string) error {
			completedCourse = courseID
			return nil
		}},
	)

	if err := b.UpdateProgress(context.Background(), "e-1", 60); err != nil {
		t.Fatalf("UpdateProgress(60) error = %v", err)
	}
	if !gotNow.Equal(b.now()) {
		t.Errorf("last_updated = %v, want %v", gotNow, b.now())
	}
	if completedCourse != "" {
		t.Errorf("completed course = %q, want none before 100", completedCourse)
	}

	if err := b.UpdateProgress(context.Background(), "e-1", 100); err != nil {
		t.Fatalf("UpdateProgress(100) error = %v", err)
	}
	if completedCourse != "3" {
		t.Errorf("completed course = %q, want %q", completedCourse, "3")
	}

	err := b.UpdateProgress(context.Background(), "missing", 10)
	if !model.IsCode(err, model.ErrCodeRemoteRejected) {
		t.Errorf("missing enrollment error = %v, want REMOTE_REJECTED", err)
	}
}

func TestRemoteBackend_UpdateProgress_ConnectionFailure(t *testing.T) {
	b := newTestRemote(&mockCourseRepo{},
		&mockEnrollmentRepo{updateProgressFn: func(context.Context, string, int, time.Time) (*model.Enrollment, error) {
			return nil, errors.New("connection refused")
		}},
		&mockProfileRepo{},
	)

	err := b.UpdateProgress(context.Background(), "e-1", 10)
	if !model.IsCode(err, model.ErrCodeBackendUnavailable) {
		t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
}
