package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// CatalogServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	Courses() []model.Course
	Loading() bool
	ListCourses(ctx context.Context) model.Result[[]model.Course]
	GetCourse(ctx context.Context, id string) model.Result[*model.Course]
	Enroll(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error)
	UpdateProgress(ctx context.Context, enrollmentID string, progress int) error
	Mode(ctx context.Context) model.Mode
}

// CourseHandler はコースカタログと受講登録のHTTPハンドラー。
type CourseHandler struct {
	service CatalogServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CatalogServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

type courseListResponse struct {
	Courses []model.Course `json:"courses"`
	Loading bool           `json:"loading"`
	resultMeta
}

type courseResponse struct {
	Course *model.Course `json:"course"`
	resultMeta
}

type enrollmentResponse struct {
	Enrollment *model.Enrollment `json:"enrollment"`
	resultMeta
}

// progressRequest は進捗更新リクエストのボディ。
// 未指定と0を区別するためポインタで受ける。
type progressRequest struct {
	Progress *int `json:"progress"`
}

// ListCourses はメモリ上のコース一覧と読み込み中フラグを返す。
// GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, courseListResponse{
		Courses:    h.service.Courses(),
		Loading:    h.service.Loading(),
		resultMeta: resultMeta{Mode: h.service.Mode(r.Context())},
	})
}

// RefreshCourses はコース一覧を取得し直す。
// POST /api/courses/refresh
func (h *CourseHandler) RefreshCourses(w http.ResponseWriter, r *http.Request) {
	res := h.service.ListCourses(r.Context())
	writeJSON(w, http.StatusOK, courseListResponse{
		Courses:    res.Value,
		resultMeta: metaOf(res),
	})
}

// GetCourse はコース詳細を返す。
// GET /api/courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")

	res := h.service.GetCourse(r.Context(), courseID)
	if res.Value == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewCourseNotFoundError(courseID))
		return
	}

	writeJSON(w, http.StatusOK, courseResponse{Course: res.Value, resultMeta: metaOf(res)})
}

// Enroll は現在のユーザーをコースに受講登録する。
// POST /api/courses/{id}/enroll
func (h *CourseHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewInvalidArgumentError("userId", "required"))
		return
	}

	res, err := h.service.Enroll(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, enrollmentResponse{Enrollment: res.Value, resultMeta: metaOf(res)})
}

// UpdateProgress は受講登録の進捗を更新する。
// PUT /api/enrollments/{id}/progress
func (h *CourseHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Progress == nil {
		handleServiceError(w, model.NewInvalidArgumentError("progress", "required"))
		return
	}

	if err := h.service.UpdateProgress(r.Context(), chi.URLParam(r, "id"), *req.Progress); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
