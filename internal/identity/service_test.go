package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/backend"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/session"
)

// mockBackend はテスト用のBackend。
type mockBackend struct {
	signUpFn  func(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error)
	signInFn  func(ctx context.Context, email, password string) (*model.User, error)
	signOutFn func(ctx context.Context) error
	profileFn func(ctx context.Context, userID string) (*model.Profile, error)

	calls    int
	watchers watchers
}

func (m *mockBackend) SignUp(ctx context.Context, email, password, displayName string) (model.Result[*model.User], error) {
	m.calls++
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, displayName)
	}
	return model.Result[*model.User]{Value: &model.User{ID: "u-1", Email: email, DisplayName: displayName}}, nil
}

func (m *mockBackend) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	m.calls++
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &model.User{ID: "u-1", Email: email}, nil
}

func (m *mockBackend) SignOut(ctx context.Context) error {
	m.calls++
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

func (m *mockBackend) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	m.calls++
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockBackend) Watch(fn func(*model.User)) func() {
	return m.watchers.add(fn)
}

func newTestService(remote Backend, available bool, allowFallback bool) (*Service, *session.Session) {
	sess := session.New()
	svc := NewService(remote, NewFallbackBackend(), backend.Static(available), sess, nil, ServiceConfig{AllowFallback: allowFallback})
	return svc, sess
}

func TestService_SignUp_Fallback_SetsCurrentUser(t *testing.T) {
	svc, sess := newTestService(nil, false, true)

	res, err := svc.SignUp(context.Background(), "bob@example.com", "pw", "Bob")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Mode != model.ModeFallback {
		t.Errorf("Mode = %q, want fallback", res.Mode)
	}
	if res.Value.Email != "bob@example.com" || res.Value.DisplayName != "Bob" || !res.Value.EmailVerified {
		t.Errorf("user = %+v", res.Value)
	}

	cur, ready := sess.Current()
	if !ready || cur == nil || cur.ID != res.Value.ID {
		t.Errorf("Current() = (%+v, %v), want signed-up user", cur, ready)
	}
}

func TestService_SignIn_Fallback_DisplayNameFromLocalPart(t *testing.T) {
	svc, _ := newTestService(nil, false, true)

	res, err := svc.SignIn(context.Background(), "alice@example.com", "x")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Value.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want %q", res.Value.DisplayName, "alice")
	}
	if res.Mode != model.ModeFallback {
		t.Errorf("Mode = %q, want fallback", res.Mode)
	}

	cur, _ := svc.CurrentUser()
	if cur == nil || cur.Email != "alice@example.com" {
		t.Errorf("CurrentUser() = %+v, want alice", cur)
	}
}

func TestService_InvalidArgument(t *testing.T) {
	remote := &mockBackend{}
	svc, _ := newTestService(remote, true, true)

	tests := []struct {
		name string
		call func() error
	}{
		{"SignUp メールアドレス形式不正", func() error {
			_, err := svc.SignUp(context.Background(), "not-an-email", "pw", "Bob")
			return err
		}},
		{"SignUp パスワード空", func() error {
			_, err := svc.SignUp(context.Background(), "bob@example.com", "", "Bob")
			return err
		}},
		{"SignUp 表示名空", func() error {
			_, err := svc.SignUp(context.Background(), "bob@example.com", "pw", "")
			return err
		}},
		{"SignIn メールアドレス空", func() error {
			_, err := svc.SignIn(context.Background(), "", "pw")
			return err
		}},
		{"SignIn パスワード空", func() error {
			_, err := svc.SignIn(context.Background(), "alice@example.com", "")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !model.IsCode(err, model.ErrCodeInvalidArgument) {
				t.Errorf("error = %v, want INVALID_ARGUMENT", err)
			}
		})
	}

	if remote.calls != 0 {
		t.Errorf("backend calls = %d, want 0", remote.calls)
	}
}

func TestService_BackendUnavailable_WhenFallbackDisabled(t *testing.T) {
	remote := &mockBackend{}
	svc, sess := newTestService(remote, false, false)

	res, err := svc.SignUp(context.Background(), "bob@example.com", "pw", "Bob")
	if !model.IsCode(err, model.ErrCodeBackendUnavailable) {
		t.Errorf("SignUp error = %v, want BACKEND_UNAVAILABLE", err)
	}
	if res.Mode != model.ModeUnavailable {
		t.Errorf("Mode = %q, want unavailable", res.Mode)
	}

	_, err = svc.SignIn(context.Background(), "alice@example.com", "x")
	if !model.IsCode(err, model.ErrCodeBackendUnavailable) {
		t.Errorf("SignIn error = %v, want BACKEND_UNAVAILABLE", err)
	}

	if remote.calls != 0 {
		t.Errorf("backend calls = %d, want 0", remote.calls)
	}
	if cur, _ := sess.Current(); cur != nil {
		t.Errorf("current user = %+v, want nil", cur)
	}
}

func TestService_RemoteRejected_PassedThrough(t *testing.T) {
	remote := &mockBackend{
		signInFn: func(context.Context, string, string) (*model.User, error) {
			return nil, model.ErrInvalidCredentials
		},
		signUpFn: func(context.Context, string, string, string) (model.Result[*model.User], error) {
			return model.Result[*model.User]{}, model.ErrEmailAlreadyInUse
		},
	}
	svc, sess := newTestService(remote, true, true)

	_, err := svc.SignIn(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("SignIn error = %v, want ErrInvalidCredentials", err)
	}

	_, err = svc.SignUp(context.Background(), "alice@example.com", "secret1", "Alice")
	if !errors.Is(err, model.ErrEmailAlreadyInUse) {
		t.Errorf("SignUp error = %v, want ErrEmailAlreadyInUse", err)
	}

	if cur, _ := sess.Current(); cur != nil {
		t.Errorf("current user = %+v, want nil after rejection", cur)
	}
}

func TestService_SignUp_Remote_SwallowedProfileFailureInDiagnostic(t *testing.T) {
	profileErr := errors.New("failed to create profile: timeout")
	remote := &mockBackend{
		signUpFn: func(_ context.Context, email, _, displayName string) (model.Result[*model.User], error) {
			return model.Result[*model.User]{
				Value:      &model.User{ID: "u-9", Email: email, DisplayName: displayName},
				Diagnostic: profileErr,
			}, nil
		},
	}
	svc, sess := newTestService(remote, true, true)

	res, err := svc.SignUp(context.Background(), "bob@example.com", "secret1", "Bob")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Mode != model.ModeRemote {
		t.Errorf("Mode = %q, want remote", res.Mode)
	}
	if !res.Degraded() || !errors.Is(res.Diagnostic, profileErr) {
		t.Errorf("Diagnostic = %v, want %v", res.Diagnostic, profileErr)
	}
	if cur, _ := sess.Current(); cur == nil || cur.ID != "u-9" {
		t.Errorf("current user = %+v, want u-9", cur)
	}
}

func TestService_SignIn_RemoteConnectionFailure_FallsBack(t *testing.T) {
	connErr := model.NewBackendUnavailableError(errors.New("connection refused"))
	remote := &mockBackend{
		signInFn: func(context.Context, string, string) (*model.User, error) {
			return nil, connErr
		},
	}
	svc, _ := newTestService(remote, true, true)

	res, err := svc.SignIn(context.Background(), "alice@example.com", "x")
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if res.Value.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want alice", res.Value.DisplayName)
	}
	if res.Mode != model.ModeFallback {
		t.Errorf("Mode = %q, want fallback", res.Mode)
	}
}

func TestService_SignIn_CanceledCaller_NoFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	remote := &mockBackend{
		signInFn: func(ctx context.Context, _, _ string) (*model.User, error) {
			cancel()
			return nil, model.NewBackendUnavailableError(ctx.Err())
		},
	}
	probe := backend.NewProbe(&mockPinger{}, time.Hour, nil)
	sess := session.New()
	svc := NewService(remote, NewFallbackBackend(), probe, sess, nil, ServiceConfig{AllowFallback: true})

	res, err := svc.SignIn(ctx, "alice@example.com", "wrong")
	if !model.IsCode(err, model.ErrCodeBackendUnavailable) {
		t.Fatalf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
	if res.Value != nil {
		t.Errorf("Value = %+v, want nil", res.Value)
	}
	if res.Mode != model.ModeRemote {
		t.Errorf("Mode = %q, want remote", res.Mode)
	}
	if cur, _ := sess.Current(); cur != nil {
		t.Errorf("current user = %+v, want nil", cur)
	}
	if got := svc.Mode(context.Background()); got != model.ModeRemote {
		t.Errorf("Mode() after canceled caller = %q, want remote", got)
	}
}

func TestService_SignIn_Remote_CurrentUserFromNotification(t *testing.T) {
	remote := NewRemoteBackend(
		&mockAccountRepo{findByEmailFn: func(context.Context, string) (*model.User, string, error) {
			return &model.User{ID: "u-1", Email: "alice@example.com", DisplayName: "Alice"}, "hashed:secret1", nil
		}},
		&mockProfileRepo{},
		&mockSessionRepo{},
		plainHasher{},
		RemoteConfig{SessionMaxAge: 60},
	)
	sess := session.New()
	svc := NewService(remote, NewFallbackBackend(), backend.Static(true), sess, nil, ServiceConfig{AllowFallback: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	cur, ready := svc.CurrentUser()
	if !ready || cur == nil || cur.ID != "u-1" {
		t.Errorf("CurrentUser() = (%+v, %v), want u-1", cur, ready)
	}
}

func TestService_SignOut_AlwaysClears(t *testing.T) {
	svc, sess := newTestService(nil, false, true)

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "x"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.SignOut(context.Background()); err != nil {
			t.Errorf("SignOut #%d error = %v", i, err)
		}
		if cur, _ := sess.Current(); cur != nil {
			t.Errorf("SignOut #%d: current user = %+v, want nil", i, cur)
		}
	}
}

func TestService_SignOut_RemoteFailure_StillClears(t *testing.T) {
	remote := &mockBackend{signOutFn: func(context.Context) error {
		return model.NewBackendUnavailableError(errors.New("connection refused"))
	}}
	svc, sess := newTestService(remote, true, true)
	sess.Set(&model.User{ID: "u-1"})

	err := svc.SignOut(context.Background())
	if !model.IsCode(err, model.ErrCodeBackendUnavailable) {
		t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
	if cur, _ := sess.Current(); cur != nil {
		t.Errorf("current user = %+v, want nil", cur)
	}
}

func TestService_UserProfile(t *testing.T) {
	want := &model.Profile{UserID: "u-1", Role: model.DefaultRole}
	remote := &mockBackend{profileFn: func(_ context.Context, userID string) (*model.Profile, error) {
		if userID == "u-1" {
			return want, nil
		}
		if userID == "broken" {
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}}

	svc, _ := newTestService(remote, true, true)
	if got := svc.UserProfile(context.Background(), "u-1"); got != want {
		t.Errorf("UserProfile(u-1) = %+v, want %+v", got, want)
	}
	if got := svc.UserProfile(context.Background(), "u-2"); got != nil {
		t.Errorf("UserProfile(u-2) = %+v, want nil", got)
	}
	if got := svc.UserProfile(context.Background(), "broken"); got != nil {
		t.Errorf("UserProfile(broken) = %+v, want nil", got)
	}
	if got := svc.UserProfile(context.Background(), ""); got != nil {
		t.Errorf("UserProfile(\"\") = %+v, want nil", got)
	}

	// リモートに到達できない場合はフォールバックのデータを返さない
	offline, _ := newTestService(remote, false, true)
	if got := offline.UserProfile(context.Background(), "u-1"); got != nil {
		t.Errorf("offline UserProfile(u-1) = %+v, want nil", got)
	}
}

func TestService_Start_FallbackOnly_EmitsNoneOnce(t *testing.T) {
	svc, sess := newTestService(nil, false, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sess.Ready() {
		t.Fatal("session ready before Start")
	}
	svc.Start(ctx)
	if !sess.Ready() {
		t.Fatal("session not ready after Start")
	}

	var got []*model.User
	for u := range svc.Observe(ctx) {
		got = append(got, u)
		break
	}
	if len(got) != 1 || got[0] != nil {
		t.Errorf("first emission = %v, want [nil]", got)
	}
}

func TestService_Start_AllBackendsDisabled_ReadyImmediately(t *testing.T) {
	sess := session.New()
	svc := NewService(nil, nil, nil, sess, nil, ServiceConfig{AllowFallback: false})

	svc.Start(context.Background())

	u, ready := svc.CurrentUser()
	if !ready || u != nil {
		t.Errorf("CurrentUser() = (%+v, %v), want (nil, true)", u, ready)
	}
}

func TestService_Observe_OrderedWithOperations(t *testing.T) {
	svc, _ := newTestService(nil, false, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	ch := make(chan *model.User, 16)
	started := make(chan struct{})
	go func() {
		defer close(ch)
		first := true
		for u := range svc.Observe(ctx) {
			ch <- u
			if first {
				close(started)
				first = false
			}
		}
	}()
	<-started

	if _, err := svc.SignUp(context.Background(), "bob@example.com", "pw", "Bob"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := svc.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "alice@example.com", "x"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	want := []string{"", "bob@example.com", "", "alice@example.com"}
	for i, w := range want {
		select {
		case u := <-ch:
			got := ""
			if u != nil {
				got = u.Email
			}
			if got != w {
				t.Errorf("emission %d = %q, want %q", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for emission %d", i)
		}
	}
}

func TestService_Start_StopsWatchingOnCancel(t *testing.T) {
	remote := &mockBackend{}
	svc, sess := newTestService(remote, true, true)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		remote.watchers.mu.Lock()
		n := len(remote.watchers.fns)
		remote.watchers.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watchers were not cancelled")
		}
		time.Sleep(time.Millisecond)
	}

	remote.watchers.notify(&model.User{ID: "late"})
	if cur, _ := sess.Current(); cur != nil {
		t.Errorf("current user = %+v, want nil after cancel", cur)
	}
}

type mockPinger struct{}

func (mockPinger) PingContext(context.Context) error { return nil }
