package middleware

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
)

// NewCSRFMiddleware は状態変更リクエストにJSONのContent-Typeを要求するミドルウェアを返す。
// application/jsonはCORSのプリフライト対象となるため、
// 許可オリジン以外のページからのフォーム送信による状態変更を防げる。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証しない。
func NewCSRFMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				slog.Warn("CSRF validation failed: content type is not JSON",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusUnsupportedMediaType, &model.APIError{
					Code:     "UNSUPPORTED_MEDIA_TYPE",
					Message:  "Content-Type must be application/json",
					Category: "validation",
					Action:   "Content-Type: application/json を指定してください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
