// Package identity はアカウントのライフサイクル操作と、現在のログインユーザーの管理を提供する。
package identity

import (
	"context"
	"sync"

	"github.com/hitoshi/learnhub/internal/model"
)

// Backend は認証バックエンドのインターフェース。
// RemoteBackendとFallbackBackendが実装し、Serviceが操作ごとにどちらかを選ぶ。
type Backend interface {
	// SignUp はアカウントを作成し、そのユーザーでログインする。
	// 握りつぶした副次的な失敗はResult.Diagnosticに入れて返す。
	SignUp(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error)
	// SignIn は認証情報を検証してログインする。
	SignIn(ctx context.Context, email, password string) (*model.User, error)
	// SignOut はログアウトする。ログインしていない場合もエラーにしない。
	SignOut(ctx context.Context) error
	// Profile は拡張プロフィールを取得する。存在しない場合はnilを返す。
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	// Watch は認証状態の変化を購読する。登録時に現在の状態を1回通知する。
	// 通知は状態を変えた操作の中で同期的に行われる。
	Watch(fn func(*model.User)) (cancel func())
}

// watchers は認証状態の購読者を保持する。呼び出し側のロック内で使う。
type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(*model.User)
}

func (w *watchers) add(fn func(*model.User)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(*model.User))
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) notify(u *model.User) {
	w.mu.Lock()
	fns := make([]func(*model.User), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(u.Clone())
	}
}
