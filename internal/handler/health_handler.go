package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
)

// ModeReporter は現在の動作モードを返すインターフェース。
type ModeReporter interface {
	Mode(ctx context.Context) model.Mode
}

type healthResponse struct {
	Status string     `json:"status"`
	Mode   model.Mode `json:"mode"`
}

// NewHealthHandler はプロセスの生存と現在の動作モードを返すハンドラーを生成する。
// バックエンドに到達できなくてもプロセスは応答できるため、常に200を返す。
// GET /health
func NewHealthHandler(reporter ModeReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Mode:   reporter.Mode(r.Context()),
		})
	}
}
