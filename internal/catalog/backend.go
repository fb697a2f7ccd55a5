// Package catalog はコースカタログの参照と、受講登録・進捗の管理を提供する。
package catalog

import (
	"context"

	"github.com/hitoshi/learnhub/internal/model"
)

// Backend はカタログバックエンドのインターフェース。
// RemoteBackendとFallbackBackendが実装する。
type Backend interface {
	// ListCourses は全コースを表示順で返す。
	ListCourses(ctx context.Context) ([]model.Course, error)
	// GetCourse は指定IDのコースを返す。存在しない場合はnilを返す。
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	// Enroll は進捗0の受講登録を作成する。
	// 握りつぶした副次的な失敗はResult.Diagnosticに入れて返す。
	Enroll(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error)
	// UpdateProgress は受講登録の進捗率を更新する。
	UpdateProgress(ctx context.Context, enrollmentID string, progress int) error
}
