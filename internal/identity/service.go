package identity

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/learnhub/internal/backend"
	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/validation"
)

// ServiceConfig はIdentityServiceの設定。
type ServiceConfig struct {
	// AllowFallback はリモートバックエンドに到達できない場合にFallbackBackendで処理するかどうか。
	AllowFallback bool
}

// Service はアカウントのライフサイクル操作を提供し、Sessionの現在のユーザーを管理する。
type Service struct {
	remote   Backend
	fallback Backend
	selector *backend.Selector[Backend]
	session  *session.Session
	validate *validation.Validator
	metrics  metrics.MetricsCollector

	mu      sync.Mutex
	cancels []func()
}

// NewService はServiceを生成する。
// remoteがnilの場合はリモートバックエンド未設定として常にフォールバック（または利用不可）で動作する。
func NewService(
	remote Backend,
	fallback Backend,
	availability backend.Availability,
	sess *session.Session,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if remote == nil {
		availability = backend.Static(false)
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		remote:   remote,
		fallback: fallback,
		selector: backend.NewSelector(availability, remote, fallback, config.AllowFallback && fallback != nil),
		session:  sess,
		validate: validation.New(),
		metrics:  collector,
	}
}

type signUpInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
}

type signInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Start はSessionをバックエンドの認証状態の通知に接続する。
// 通知が1回もない場合（バックエンドが全て無効な場合）もSessionをreadyにする。
// ctxが終了すると購読を解除する。
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancels != nil {
		return
	}
	s.cancels = []func(){}

	if s.remote != nil {
		s.cancels = append(s.cancels, s.remote.Watch(s.onAuthStateChanged))
	}
	if fb, ok := s.selector.Fallback(); ok {
		s.cancels = append(s.cancels, fb.Watch(s.onAuthStateChanged))
	}
	s.session.MarkReady()

	context.AfterFunc(ctx, s.stop)
}

func (s *Service) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = []func(){}
}

func (s *Service) onAuthStateChanged(u *model.User) {
	s.session.Set(u)
}

// SignUp はアカウントを作成し、現在のユーザーに設定する。
// プロフィール作成の失敗などの副次的な失敗はResult.Diagnosticで返し、エラーにはしない。
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error) {
	start := time.Now()

	if err := s.validate.Struct(signUpInput{Email: email, Password: password, DisplayName: displayName}); err != nil {
		return model.Result[*model.User]{}, err
	}

	b, mode, err := s.selector.Select(ctx)
	if err != nil {
		return model.Result[*model.User]{Mode: mode}, err
	}

	res, err := b.SignUp(ctx, email, password, displayName)
	if err != nil && mode == model.ModeRemote {
		if fb, ok := s.selector.OnRemoteFailure(ctx, err); ok {
			slog.Warn("remote sign up failed, using fallback",
				slog.String("operation", "sign_up"),
				slog.String("error", err.Error()),
			)
			remoteErr := err
			mode = model.ModeFallback
			res, err = fb.SignUp(ctx, email, password, displayName)
			if err == nil {
				res.Diagnostic = remoteErr
			}
		}
	}
	res.Mode = mode
	s.observe("sign_up", mode, start)
	if err != nil {
		return res, err
	}

	if res.Degraded() {
		s.metrics.RecordSwallowedFailure("sign_up")
	}
	s.session.Set(res.Value)
	return res, nil
}

// SignIn は認証情報でログインする。
// リモートでは現在のユーザーの更新をバックエンドからの通知に任せ、
// フォールバックでは直ちに現在のユーザーに設定する。
// Result.Modeには実際に処理したバックエンドのモードを入れる。
func (s *Service) SignIn(ctx context.Context, email, password string) (model.Result[*model.User], error) {
	start := time.Now()

	if err := s.validate.Struct(signInInput{Email: email, Password: password}); err != nil {
		return model.Result[*model.User]{}, err
	}

	b, mode, err := s.selector.Select(ctx)
	if err != nil {
		return model.Result[*model.User]{Mode: mode}, err
	}

	u, err := b.SignIn(ctx, email, password)
	if err != nil && mode == model.ModeRemote {
		if fb, ok := s.selector.OnRemoteFailure(ctx, err); ok {
			slog.Warn("remote sign in failed, using fallback",
				slog.String("operation", "sign_in"),
				slog.String("error", err.Error()),
			)
			mode = model.ModeFallback
			u, err = fb.SignIn(ctx, email, password)
		}
	}
	s.observe("sign_in", mode, start)
	if err != nil {
		return model.Result[*model.User]{Mode: mode}, err
	}

	if mode == model.ModeFallback {
		s.session.Set(u)
	}
	return model.Result[*model.User]{Value: u, Mode: mode}, nil
}

// SignOut は現在のユーザーをなしにする。何度呼んでもよい。
// リモートのセッション破棄に失敗した場合もローカルのログイン状態は解除し、エラーを返す。
func (s *Service) SignOut(ctx context.Context) error {
	var remoteErr error
	if s.remote != nil {
		if err := s.remote.SignOut(ctx); err != nil {
			slog.Warn("failed to sign out from remote backend",
				slog.String("operation", "sign_out"),
				slog.String("error", err.Error()),
			)
			remoteErr = err
		}
	}
	if fb, ok := s.selector.Fallback(); ok {
		_ = fb.SignOut(ctx)
	}

	s.session.Clear()
	return remoteErr
}

// UserProfile は拡張プロフィールを返す。
// リモートバックエンドに到達できない場合や存在しない場合はnilを返す。フォールバックのデータは返さない。
func (s *Service) UserProfile(ctx context.Context, userID string) *model.Profile {
	if userID == "" {
		return nil
	}

	b, ok := s.selector.Remote(ctx)
	if !ok {
		return nil
	}

	p, err := b.Profile(ctx, userID)
	if err != nil {
		slog.Warn("failed to get user profile",
			slog.String("operation", "user_profile"),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return p
}

// Observe は現在のユーザーが変わるたびにその値（またはnil）を返すシーケンスを返す。
func (s *Service) Observe(ctx context.Context) iter.Seq[*model.User] {
	return s.session.Observe(ctx)
}

// CurrentUser は現在のユーザーのコピーとSessionのreadyフラグを返す。
// ready前はユーザーを返さない。
func (s *Service) CurrentUser() (*model.User, bool) {
	return s.session.Current()
}

// Mode は現時点で選ばれる動作モードを返す。
func (s *Service) Mode(ctx context.Context) model.Mode {
	return s.selector.Mode(ctx)
}

func (s *Service) observe(operation string, mode model.Mode, start time.Time) {
	s.metrics.RecordOperation(operation, mode, time.Since(start))
	if mode == model.ModeFallback {
		s.metrics.RecordFallback(operation)
	}
}
