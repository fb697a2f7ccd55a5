// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// CurrentUserSource はプロセスのセッションから現在のユーザーを取得するインターフェース。
// identity.Serviceの部分集合として定義する。
type CurrentUserSource interface {
	CurrentUser() (*model.User, bool)
}

// NewCurrentUserMiddleware はセッションの現在のユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// 未サインインでもリクエストは通す。必須にする場合はRequireUserを併用する。
func NewCurrentUserMiddleware(source CurrentUserSource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, _ := source.CurrentUser(); u != nil {
				r = r.WithContext(ContextWithUserID(r.Context(), u.ID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser は現在のユーザーがいないリクエストに401を返すミドルウェア。
// NewCurrentUserMiddlewareの後に配置する。
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := UserIDFromContext(r.Context()); err != nil {
			WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
				Code:     "UNAUTHENTICATED",
				Message:  "サインインが必要です。",
				Category: "auth",
				Action:   "サインインしてから再度お試しください。",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// ユーザーIDが存在しない場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はユーザーIDをコンテキストに設定する。
// テストおよびハンドラーからの利用を想定。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
