package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因となったエラー（バックエンドの応答など）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument    = "INVALID_ARGUMENT"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeRemoteRejected     = "REMOTE_REJECTED"
	ErrCodeNotFound           = "NOT_FOUND"
)

// ErrorCode はエラーチェーン中のAPIErrorのコードを返す。
// APIErrorを含まない場合は空文字列を返す。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsCode はエラーが指定コードのAPIErrorかどうかを返す。
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// NewInvalidArgumentError は呼び出し側の入力が前提条件を満たさない場合のエラーを生成する。
func NewInvalidArgumentError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf("入力値が不正です: %s (%s)", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewBackendUnavailableError はリモートバックエンドに到達できない場合のエラーを生成する。
// causeがnilの場合は設定上の無効化を表す。
func NewBackendUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "バックエンドに接続できません。",
		Category: "system",
		Action:   "接続を確認し、しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewRemoteRejectedError はバックエンドが要求を処理した上で拒否した場合のエラーを生成する。
// reasonにはバックエンドから返された理由をそのまま渡す。
func NewRemoteRejectedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteRejected,
		Message:  reason,
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewCatalogRejectedError はバックエンドが受講登録・進捗の要求を拒否した場合のエラーを生成する。
func NewCatalogRejectedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteRejected,
		Message:  reason,
		Category: "catalog",
		Action:   "コースの一覧から受講登録をやり直してください。",
	}
}

// NewCourseNotFoundError はコースが見つからない場合のエラーを生成する。
// サービス層では不在をnilで表すため、HTTP応答の生成時にのみ使用する。
func NewCourseNotFoundError(courseID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定されたコースが見つかりません: %s", courseID),
		Category: "catalog",
		Action:   "コースIDを確認してください。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("プロフィールが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// ErrInvalidCredentials は認証情報が一致しない場合の拒否理由。
var ErrInvalidCredentials = NewRemoteRejectedError("invalid email or password")

// ErrEmailAlreadyInUse は登録済みメールアドレスでの新規登録の拒否理由。
var ErrEmailAlreadyInUse = NewRemoteRejectedError("email already in use")

// ErrWeakPassword はパスワードポリシー違反の拒否理由。
var ErrWeakPassword = NewRemoteRejectedError("password should be at least 6 characters")
