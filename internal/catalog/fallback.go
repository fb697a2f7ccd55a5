package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnhub/internal/model"
)

// syntheticIDPrefix はバックエンドに保存されていない受講登録のID接頭辞。
const syntheticIDPrefix = "synthetic-"

// FallbackBackend は同梱の参照データセットで動作するBackendの実装。
// 受講登録と進捗は保存しない。
type FallbackBackend struct {
	courses []model.Course
	now     func() time.Time
}

// NewFallbackBackend は参照データセットを使うFallbackBackendを生成する。
func NewFallbackBackend() *FallbackBackend {
	return &FallbackBackend{
		courses: ReferenceCourses(),
		now:     time.Now,
	}
}

// ListCourses は参照データセットを宣言順で返す。
func (b *FallbackBackend) ListCourses(context.Context) ([]model.Course, error) {
	out := make([]model.Course, len(b.courses))
	for i, c := range b.courses {
		out[i] = c.Clone()
	}
	return out, nil
}

// GetCourse は参照データセットからコースを探す。存在しない場合はnilを返す。
func (b *FallbackBackend) GetCourse(_ context.Context, id string) (*model.Course, error) {
	for _, c := range b.courses {
		if c.ID == id {
			found := c.Clone()
			return &found, nil
		}
	}
	return nil, nil
}

// Enroll は保存されない受講登録を生成する。
func (b *FallbackBackend) Enroll(_ context.Context, userID, courseID string) (model.Result[*model.Enrollment], error) {
	e := model.NewEnrollment(syntheticIDPrefix+uuid.NewString(), userID, courseID, b.now())
	return model.Result[*model.Enrollment]{Value: e}, nil
}

// UpdateProgress は保存先がないため何もせず成功を返す。
func (b *FallbackBackend) UpdateProgress(context.Context, string, int) error {
	return nil
}

var _ Backend = (*FallbackBackend)(nil)
