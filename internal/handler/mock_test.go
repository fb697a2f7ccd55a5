package handler

import (
	"context"
	"encoding/json"
	"iter"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/learnhub/internal/model"
)

// --- モック定義 ---

// mockIdentityService はIdentityServiceInterfaceのモック実装。
type mockIdentityService struct {
	signUpFn      func(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error)
	signInFn      func(ctx context.Context, email, password string) (model.Result[*model.User], error)
	signOutFn     func(ctx context.Context) error
	userProfileFn func(ctx context.Context, userID string) *model.Profile
	events        []*model.User
	current       *model.User
	ready         bool
	mode          model.Mode
}

func (m *mockIdentityService) SignUp(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, displayName)
	}
	return model.Result[*model.User]{}, nil
}

func (m *mockIdentityService) SignIn(ctx context.Context, email, password string) (model.Result[*model.User], error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return model.Result[*model.User]{}, nil
}

func (m *mockIdentityService) SignOut(ctx context.Context) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

func (m *mockIdentityService) UserProfile(ctx context.Context, userID string) *model.Profile {
	if m.userProfileFn != nil {
		return m.userProfileFn(ctx, userID)
	}
	return nil
}

func (m *mockIdentityService) Observe(ctx context.Context) iter.Seq[*model.User] {
	return func(yield func(*model.User) bool) {
		for _, u := range m.events {
			if !yield(u) {
				return
			}
		}
	}
}

func (m *mockIdentityService) CurrentUser() (*model.User, bool) {
	return m.current, m.ready
}

func (m *mockIdentityService) Mode(context.Context) model.Mode {
	if m.mode == "" {
		return model.ModeRemote
	}
	return m.mode
}

// mockCatalogService はCatalogServiceInterfaceのモック実装。
type mockCatalogService struct {
	courses          []model.Course
	loading          bool
	listCoursesFn    func(ctx context.Context) model.Result[[]model.Course]
	getCourseFn      func(ctx context.Context, id string) model.Result[*model.Course]
	enrollFn         func(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error)
	updateProgressFn func(ctx context.Context, enrollmentID string, progress int) error
}

func (m *mockCatalogService) Courses() []model.Course { return m.courses }

func (m *mockCatalogService) Loading() bool { return m.loading }

func (m *mockCatalogService) ListCourses(ctx context.Context) model.Result[[]model.Course] {
	if m.listCoursesFn != nil {
		return m.listCoursesFn(ctx)
	}
	return model.Result[[]model.Course]{Mode: model.ModeRemote}
}

func (m *mockCatalogService) GetCourse(ctx context.Context, id string) model.Result[*model.Course] {
	if m.getCourseFn != nil {
		return m.getCourseFn(ctx, id)
	}
	return model.Result[*model.Course]{Mode: model.ModeRemote}
}

func (m *mockCatalogService) Enroll(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error) {
	if m.enrollFn != nil {
		return m.enrollFn(ctx, userID, courseID)
	}
	return model.Result[*model.Enrollment]{}, nil
}

func (m *mockCatalogService) UpdateProgress(ctx context.Context, enrollmentID string, progress int) error {
	if m.updateProgressFn != nil {
		return m.updateProgressFn(ctx, enrollmentID, progress)
	}
	return nil
}

func (m *mockCatalogService) Mode(context.Context) model.Mode { return model.ModeRemote }

// --- テストヘルパー ---

// decodeBody はレスポンスボディを汎用マップとしてパースするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return result
}
