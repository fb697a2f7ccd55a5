package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnhub/internal/model"
)

// localIDPrefix はフォールバックで生成したユーザーIDの接頭辞。
const localIDPrefix = "local-"

// FallbackBackend はリモートバックエンドに到達できない場合のローカル実装。
// パスワードは検証しない。本番環境では有効にしないこと。
type FallbackBackend struct {
	now func() time.Time

	mu       sync.Mutex
	current  *model.User
	accounts map[string]*model.User // email -> このプロセスでSignUpしたユーザー
	watchers watchers
}

// NewFallbackBackend はFallbackBackendを生成する。
func NewFallbackBackend() *FallbackBackend {
	return &FallbackBackend{
		now:      time.Now,
		accounts: make(map[string]*model.User),
	}
}

// SignUp はユーザーを合成してログイン状態にする。プロフィールは作成しない。
func (b *FallbackBackend) SignUp(_ context.Context, email, _, displayName string) (model.Result[*model.User], error) {
	u := &model.User{
		ID:            localIDPrefix + uuid.NewString(),
		Email:         email,
		DisplayName:   displayName,
		EmailVerified: true,
		CreatedAt:     b.now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.accounts[email] = u
	b.setCurrent(u)

	slog.Info("fallback user signed up",
		slog.String("user_id", u.ID),
		slog.String("email", email),
	)
	return model.Result[*model.User]{Value: u.Clone()}, nil
}

// SignIn はメールアドレスからユーザーを合成してログイン状態にする。
// このプロセスで同じメールアドレスのSignUpがあればそのユーザーを返し、
// なければ表示名をメールアドレスのローカル部とする。
func (b *FallbackBackend) SignIn(_ context.Context, email, _ string) (*model.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.accounts[email]
	if !ok {
		u = &model.User{
			ID:            localIDPrefix + uuid.NewString(),
			Email:         email,
			DisplayName:   model.LocalPart(email),
			EmailVerified: true,
			CreatedAt:     b.now(),
		}
		b.accounts[email] = u
	}
	b.setCurrent(u)

	slog.Info("fallback user signed in", slog.String("user_id", u.ID))
	return u.Clone(), nil
}

// SignOut はログイン状態を解除する。
func (b *FallbackBackend) SignOut(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setCurrent(nil)
	return nil
}

// Profile はフォールバックではプロフィールを持たないため常にnilを返す。
func (b *FallbackBackend) Profile(context.Context, string) (*model.Profile, error) {
	return nil, nil
}

// Watch は認証状態の変化を購読する。
func (b *FallbackBackend) Watch(fn func(*model.User)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cancel := b.watchers.add(fn)
	fn(b.current.Clone())
	return cancel
}

// setCurrent は現在のユーザーを更新し、変化があれば購読者に通知する。b.muを保持して呼ぶ。
func (b *FallbackBackend) setCurrent(u *model.User) {
	if b.current.Equal(u) {
		return
	}
	b.current = u.Clone()
	b.watchers.notify(u)
}

var _ Backend = (*FallbackBackend)(nil)
