package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
)

// MinPasswordLength はリモートバックエンドが受け付けるパスワードの最小文字数。
const MinPasswordLength = 6

// RemoteConfig はリモート認証バックエンドの設定。
type RemoteConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RemoteBackend はPostgreSQLに保存したアカウントで認証するBackendの実装。
// ログイン中のセッションはプロセス内に1つだけ保持する。
type RemoteBackend struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	sessions repository.SessionRepository
	hasher   security.PasswordHasher
	config   RemoteConfig
	now      func() time.Time

	mu        sync.Mutex
	current   *model.User
	sessionID string
	watchers  watchers
}

// NewRemoteBackend はRemoteBackendを生成する。
func NewRemoteBackend(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	sessions repository.SessionRepository,
	hasher security.PasswordHasher,
	config RemoteConfig,
) *RemoteBackend {
	return &RemoteBackend{
		accounts: accounts,
		profiles: profiles,
		sessions: sessions,
		hasher:   hasher,
		config:   config,
		now:      time.Now,
	}
}

// SignUp はアカウントを作成してログインする。
// プロフィールとセッションの作成失敗はアカウント作成の成功を覆さず、Diagnosticに入れて返す。
func (b *RemoteBackend) SignUp(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error) {
	var result model.Result[*model.User]

	if len(password) < MinPasswordLength {
		return result, model.ErrWeakPassword
	}

	hash, err := b.hasher.Hash(password)
	if err != nil {
		return result, model.NewRemoteRejectedError(err.Error())
	}

	now := b.now()
	user := &model.User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
	}

	if err := b.accounts.Create(ctx, user, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return result, model.ErrEmailAlreadyInUse
		}
		return result, model.NewBackendUnavailableError(fmt.Errorf("failed to create account: %w", err))
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	var diags []error

	profile := &model.Profile{
		UserID:           user.ID,
		DisplayName:      displayName,
		Email:            email,
		Role:             model.DefaultRole,
		EnrolledCourses:  []string{},
		CompletedCourses: []string{},
		CreatedAt:        now,
	}
	if err := b.profiles.Create(ctx, profile); err != nil {
		slog.Warn("failed to create profile",
			slog.String("operation", "sign_up"),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		diags = append(diags, fmt.Errorf("failed to create profile: %w", err))
	}

	sessionID, err := b.createSession(ctx, user.ID)
	if err != nil {
		slog.Warn("failed to create session",
			slog.String("operation", "sign_up"),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		diags = append(diags, err)
	}

	b.mu.Lock()
	b.replaceSession(ctx, sessionID)
	b.setCurrent(user)
	b.mu.Unlock()

	result.Value = user.Clone()
	result.Diagnostic = errors.Join(diags...)
	return result, nil
}

// SignIn は認証情報を検証してセッションを発行し、ログイン状態にする。
func (b *RemoteBackend) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	user, hash, err := b.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, model.NewBackendUnavailableError(fmt.Errorf("failed to find account: %w", err))
	}
	if user == nil {
		return nil, model.ErrInvalidCredentials
	}

	ok, err := b.hasher.Compare(hash, password)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if !ok {
		return nil, model.ErrInvalidCredentials
	}

	sessionID, err := b.createSession(ctx, user.ID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}

	b.mu.Lock()
	b.replaceSession(ctx, sessionID)
	b.setCurrent(user)
	b.mu.Unlock()

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return user.Clone(), nil
}

// SignOut はログイン状態を解除し、セッションを破棄する。
// セッションの削除に失敗してもローカルのログイン状態は解除したままにする。
func (b *RemoteBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	sessionID := b.sessionID
	b.sessionID = ""
	b.setCurrent(nil)
	b.mu.Unlock()

	if sessionID == "" {
		return nil
	}

	if err := b.sessions.DeleteByID(ctx, sessionID); err != nil {
		return model.NewBackendUnavailableError(fmt.Errorf("failed to delete session: %w", err))
	}

	slog.Info("user signed out")
	return nil
}

// Profile は拡張プロフィールを取得する。存在しない場合はnilを返す。
func (b *RemoteBackend) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := b.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return p, nil
}

// Watch は認証状態の変化を購読する。
func (b *RemoteBackend) Watch(fn func(*model.User)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cancel := b.watchers.add(fn)
	fn(b.current.Clone())
	return cancel
}

// setCurrent は現在のユーザーを更新し、変化があれば購読者に通知する。b.muを保持して呼ぶ。
func (b *RemoteBackend) setCurrent(u *model.User) {
	if b.current.Equal(u) {
		return
	}
	b.current = u.Clone()
	b.watchers.notify(u)
}

// replaceSession は保持中のセッションを新しいものに置き換え、古いセッションを削除する。
// 古いセッションの削除失敗は期限切れでクリーンアップされるためログのみとする。b.muを保持して呼ぶ。
func (b *RemoteBackend) replaceSession(ctx context.Context, sessionID string) {
	old := b.sessionID
	b.sessionID = sessionID
	if old == "" || old == sessionID {
		return
	}
	if err := b.sessions.DeleteByID(ctx, old); err != nil {
		slog.Warn("failed to delete previous session",
			slog.String("error", err.Error()),
		)
	}
}

// createSession はセッションを作成し永続化する。
func (b *RemoteBackend) createSession(ctx context.Context, userID string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := b.now()
	session := &model.AuthSession{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(b.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := b.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	return sessionID, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var _ Backend = (*RemoteBackend)(nil)
