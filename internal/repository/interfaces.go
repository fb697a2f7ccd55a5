// Package repository はリモートバックエンドのデータ永続化を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// AccountRepository は認証アカウントの永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User, passwordHash string) error

	// FindByEmail はメールアドレスでアカウントとパスワードハッシュを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, string, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// UpdateDisplayName は表示名を更新する。
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// ProfileRepository はユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// AddEnrolledCourse は受講中コース一覧にコースIDを追加する。既に含まれる場合は何もしない。
	AddEnrolledCourse(ctx context.Context, userID, courseID string) error

	// AddCompletedCourse は修了コース一覧にコースIDを追加する。既に含まれる場合は何もしない。
	AddCompletedCourse(ctx context.Context, userID, courseID string) error
}

// SessionRepository はログインセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.AuthSession) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AuthSession, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CourseRepository はコースカタログの読み取りインターフェース。
// クライアントからコースを変更することはない。
type CourseRepository interface {
	// List は全コースを表示順で返す。
	List(ctx context.Context) ([]model.Course, error)

	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Course, error)
}

// EnrollmentRepository は受講登録の永続化インターフェース。
type EnrollmentRepository interface {
	// Create は受講登録を作成する。
	// ユーザーまたはコースが存在しない場合はErrReferenceNotFoundを返す。
	Create(ctx context.Context, enrollment *model.Enrollment) error

	// FindByID は指定IDの受講登録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Enrollment, error)

	// UpdateProgress は進捗率とlast_updatedを更新し、更新後の受講登録を返す。
	// 進捗率は減少しない（既存値との大きい方を保存する）。
	// 見つからない場合はnilを返す。
	UpdateProgress(ctx context.Context, id string, progress int, now time.Time) (*model.Enrollment, error)
}
