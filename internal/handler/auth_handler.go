// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// IdentityServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type IdentityServiceInterface interface {
	SignUp(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error)
	SignIn(ctx context.Context, email, password string) (model.Result[*model.User], error)
	SignOut(ctx context.Context) error
	UserProfile(ctx context.Context, userID string) *model.Profile
	Observe(ctx context.Context) iter.Seq[*model.User]
	CurrentUser() (*model.User, bool)
	Mode(ctx context.Context) model.Mode
}

// AuthHandler はサインアップ・サインイン・現在のユーザー関連のHTTPハンドラー。
type AuthHandler struct {
	service IdentityServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service IdentityServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *model.User `json:"user"`
	resultMeta
}

type meResponse struct {
	User  *model.User `json:"user"`
	Ready bool        `json:"ready"`
	Mode  model.Mode  `json:"mode"`
}

type profileResponse struct {
	Profile *model.Profile `json:"profile"`
	Mode    model.Mode     `json:"mode"`
}

// SignUp は新規アカウントを作成し、現在のユーザーに設定する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{User: res.Value, resultMeta: metaOf(res)})
}

// SignIn は認証情報でサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		// 認証情報の拒否は401として返す
		if model.IsCode(err, model.ErrCodeRemoteRejected) {
			apiErr := *model.ErrInvalidCredentials
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, &apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: res.Value, resultMeta: metaOf(res)})
}

// SignOut は現在のユーザーをなしにする。
// リモートのセッション破棄に失敗した場合もローカルの状態は解除済みのため、200でdegradedを付けて返す。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, resultMeta{
			Mode:     h.service.Mode(r.Context()),
			Degraded: err.Error(),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のユーザーを返す。初回の認証状態解決前は503を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ready := h.service.CurrentUser()
	if !ready {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     "SESSION_NOT_READY",
			Message:  "認証状態を確認しています。",
			Category: "auth",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:  u,
		Ready: ready,
		Mode:  h.service.Mode(r.Context()),
	})
}

// Events は現在のユーザーの変化をServer-Sent Eventsで配信する。
// 接続時点でreadyであれば、最初に現在の値を送る。
// GET /auth/events
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// 長時間の接続になるため、サーバーの書き込みタイムアウトを解除する
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("streaming is not supported", slog.String("error", err.Error()))
		return
	}

	for u := range h.service.Observe(r.Context()) {
		data, err := json.Marshal(u)
		if err != nil {
			slog.Error("failed to encode user event", slog.String("error", err.Error()))
			return
		}
		if _, err := fmt.Fprintf(w, "event: user\ndata: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// Profile はユーザーの拡張プロフィールを返す。
// GET /api/users/{id}/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	p := h.service.UserProfile(r.Context(), userID)
	if p == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError(userID))
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Mode: h.service.Mode(r.Context())})
}
