package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/learnhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証・現在のユーザー
	IdentityService IdentityServiceInterface

	// コースカタログ
	CatalogService CatalogServiceInterface

	// /metrics のハンドラー。nilの場合はルートを登録しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → CurrentUser → Logging → RateLimit → CSRF
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCurrentUserMiddleware(deps.IdentityService))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.IdentityService)
	courseHandler := NewCourseHandler(deps.CatalogService)

	r.Get("/health", NewHealthHandler(deps.IdentityService))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Use(middleware.NewCSRFMiddleware())

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
			r.Post("/signout", authHandler.SignOut)
			r.Get("/me", authHandler.Me)
			r.Get("/events", authHandler.Events)
		})

		r.Get("/api/users/{id}/profile", authHandler.Profile)

		r.Route("/api/courses", func(r chi.Router) {
			r.Get("/", courseHandler.ListCourses)
			r.Post("/refresh", courseHandler.RefreshCourses)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", courseHandler.GetCourse)
				r.With(middleware.RequireUser).Post("/enroll", courseHandler.Enroll)
			})
		})

		r.Put("/api/enrollments/{id}/progress", courseHandler.UpdateProgress)
	})

	return r
}
