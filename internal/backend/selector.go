package backend

import (
	"context"
	"errors"

	"github.com/hitoshi/learnhub/internal/model"
)

// Selector はリモートとフォールバックのどちらで処理するかを決める。
// サービスはこの1箇所でのみモードを判定し、各操作の本体はモードに依存しない。
type Selector[B any] struct {
	remote        B
	fallback      B
	availability  Availability
	allowFallback bool
}

// NewSelector はSelectorを生成する。
// availabilityがnilの場合はリモートを常に利用不可として扱う。
func NewSelector[B any](availability Availability, remote, fallback B, allowFallback bool) *Selector[B] {
	if availability == nil {
		availability = Static(false)
	}
	return &Selector[B]{
		remote:        remote,
		fallback:      fallback,
		availability:  availability,
		allowFallback: allowFallback,
	}
}

// Select は今回の操作で使うバックエンドとモードを返す。
// リモートが利用不可でフォールバックも無効な場合はBackendUnavailableエラーを返す。
func (s *Selector[B]) Select(ctx context.Context) (B, model.Mode, error) {
	if s.availability.Available(ctx) {
		return s.remote, model.ModeRemote, nil
	}
	if s.allowFallback {
		return s.fallback, model.ModeFallback, nil
	}
	var zero B
	return zero, model.ModeUnavailable, model.NewBackendUnavailableError(nil)
}

// Remote はリモートが利用可能な場合にリモートバックエンドを返す。
// フォールバックを持たない操作（プロフィール取得など）で使う。
func (s *Selector[B]) Remote(ctx context.Context) (B, bool) {
	if s.availability.Available(ctx) {
		return s.remote, true
	}
	var zero B
	return zero, false
}

// Fallback はフォールバックが有効な場合にフォールバックバックエンドを返す。
// リモート操作の失敗後に切り替える操作で使う。
func (s *Selector[B]) Fallback() (B, bool) {
	if s.allowFallback {
		return s.fallback, true
	}
	var zero B
	return zero, false
}

// invalidator は直前の疎通確認結果を破棄できるAvailability。
type invalidator interface {
	Invalidate()
}

// OnRemoteFailure はリモート操作の失敗を受け取る。
// 失敗が接続障害（BackendUnavailable）であれば可用性の判定を破棄し、
// フォールバックが有効な場合はフォールバックバックエンドを返す。
// バックエンドが要求を拒否した場合や、呼び出し元のctxが既に終了している場合はフォールバックしない。
func (s *Selector[B]) OnRemoteFailure(ctx context.Context, err error) (B, bool) {
	var zero B
	if !model.IsCode(err, model.ErrCodeBackendUnavailable) {
		return zero, false
	}
	if CallerAborted(ctx, err) {
		return zero, false
	}
	if inv, ok := s.availability.(invalidator); ok {
		inv.Invalidate()
	}
	return s.Fallback()
}

// CallerAborted は失敗が呼び出し元のキャンセルまたはタイムアウトによるものかどうかを返す。
// この場合の失敗はバックエンドの到達可否を表さない。
func CallerAborted(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	// lib/pqはキャンセル時にctx.Err()ではなくサーバー側の中断エラーを返すことがある
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		model.IsCode(err, model.ErrCodeBackendUnavailable)
}

// Mode は現時点で選ばれるモードを返す。
func (s *Selector[B]) Mode(ctx context.Context) model.Mode {
	_, mode, _ := s.Select(ctx)
	return mode
}
