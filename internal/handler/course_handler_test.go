package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

func TestCourseHandler_ListCourses_ReturnsCachedState(t *testing.T) {
	catalog := &mockCatalogService{
		courses: []model.Course{{ID: "1", Title: "Go"}},
		loading: true,
	}
	router := newTestRouter(&mockIdentityService{}, catalog)

	w := doRequest(router, http.MethodGet, "/api/courses", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["loading"] != true {
		t.Errorf("loading = %v, want true", body["loading"])
	}
	courses, _ := body["courses"].([]any)
	if len(courses) != 1 {
		t.Errorf("len(courses) = %d, want 1", len(courses))
	}
}

func TestCourseHandler_RefreshCourses_Degraded(t *testing.T) {
	catalog := &mockCatalogService{
		listCoursesFn: func(ctx context.Context) model.Result[[]model.Course] {
			return model.Result[[]model.Course]{
				Value:      []model.Course{{ID: "1"}, {ID: "2"}},
				Mode:       model.ModeFallback,
				Diagnostic: errors.New("catalog is empty"),
			}
		},
	}
	router := newTestRouter(&mockIdentityService{}, catalog)

	w := doRequest(router, http.MethodPost, "/api/courses/refresh", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["mode"] != "fallback" {
		t.Errorf("mode = %v, want fallback", body["mode"])
	}
	if body["degraded"] != "catalog is empty" {
		t.Errorf("degraded = %v, want %q", body["degraded"], "catalog is empty")
	}
}

func TestCourseHandler_GetCourse(t *testing.T) {
	catalog := &mockCatalogService{
		getCourseFn: func(ctx context.Context, id string) model.Result[*model.Course] {
			if id != "2" {
				return model.Result[*model.Course]{Mode: model.ModeRemote}
			}
			return model.Result[*model.Course]{Value: &model.Course{ID: "2", Title: "SQL"}, Mode: model.ModeRemote}
		},
	}
	router := newTestRouter(&mockIdentityService{}, catalog)

	w := doRequest(router, http.MethodGet, "/api/courses/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	course, _ := body["course"].(map[string]any)
	if course["title"] != "SQL" {
		t.Errorf("course.title = %v, want SQL", course["title"])
	}

	w = doRequest(router, http.MethodGet, "/api/courses/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCourseHandler_Enroll_RequiresCurrentUser(t *testing.T) {
	called := false
	catalog := &mockCatalogService{
		enrollFn: func(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error) {
			called = true
			return model.Result[*model.Enrollment]{}, nil
		},
	}
	router := newTestRouter(&mockIdentityService{ready: true}, catalog)

	w := doRequest(router, http.MethodPost, "/api/courses/1/enroll", "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("Enroll should not be called without a current user")
	}
}

func TestCourseHandler_Enroll_SyntheticIsReportedAsDegraded(t *testing.T) {
	var gotUser, gotCourse string
	catalog := &mockCatalogService{
		enrollFn: func(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error) {
			gotUser, gotCourse = userID, courseID
			return model.Result[*model.Enrollment]{
				Value:      model.NewEnrollment("synthetic-1", userID, courseID, time.Now()),
				Mode:       model.ModeFallback,
				Diagnostic: model.NewBackendUnavailableError(nil),
			}, nil
		},
	}
	identity := &mockIdentityService{ready: true, current: &model.User{ID: "u-1"}}
	router := newTestRouter(identity, catalog)

	w := doRequest(router, http.MethodPost, "/api/courses/3/enroll", "")

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	if gotUser != "u-1" || gotCourse != "3" {
		t.Errorf("Enroll(%q, %q), want (u-1, 3)", gotUser, gotCourse)
	}
	body := decodeBody(t, w)
	if body["mode"] != "fallback" {
		t.Errorf("mode = %v, want fallback", body["mode"])
	}
	if _, ok := body["degraded"]; !ok {
		t.Error("expected degraded note for a synthetic enrollment")
	}
}

func TestCourseHandler_Enroll_Rejected(t *testing.T) {
	catalog := &mockCatalogService{
		enrollFn: func(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error) {
			return model.Result[*model.Enrollment]{}, model.NewCatalogRejectedError("course 42 does not exist")
		},
	}
	identity := &mockIdentityService{ready: true, current: &model.User{ID: "u-1"}}
	router := newTestRouter(identity, catalog)

	w := doRequest(router, http.MethodPost, "/api/courses/42/enroll", "")

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestCourseHandler_UpdateProgress(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCalled bool
	}{
		{"success", `{"progress":100}`, nil, http.StatusNoContent, true},
		{"zero is accepted", `{"progress":0}`, nil, http.StatusNoContent, true},
		{"missing progress", `{}`, nil, http.StatusBadRequest, false},
		{"out of range", `{"progress":101}`, model.NewInvalidArgumentError("progress", "lte"), http.StatusBadRequest, true},
		{"unknown enrollment", `{"progress":10}`, model.NewCatalogRejectedError("enrollment e-1 does not exist"), http.StatusConflict, true},
		{"unavailable", `{"progress":10}`, model.NewBackendUnavailableError(nil), http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			catalog := &mockCatalogService{
				updateProgressFn: func(ctx context.Context, enrollmentID string, progress int) error {
					called = true
					if enrollmentID != "e-1" {
						t.Errorf("enrollmentID = %q, want e-1", enrollmentID)
					}
					return tt.err
				},
			}
			router := newTestRouter(&mockIdentityService{}, catalog)

			w := doRequest(router, http.MethodPut, "/api/enrollments/e-1/progress", tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("called = %v, want %v", called, tt.wantCalled)
			}
		})
	}
}

func TestMetaOf(t *testing.T) {
	m := metaOf(model.Result[int]{Mode: model.ModeRemote})
	if m.Degraded != "" {
		t.Errorf("Degraded = %q, want empty", m.Degraded)
	}

	m = metaOf(model.Result[int]{Mode: model.ModeFallback, Diagnostic: errors.New("x")})
	if m.Mode != model.ModeFallback || m.Degraded != "x" {
		t.Errorf("metaOf = %+v", m)
	}
}
