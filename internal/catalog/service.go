package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/learnhub/internal/backend"
	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/validation"
)

// errEmptyCatalog はリモートのカタログが空だったことを表す。
var errEmptyCatalog = errors.New("remote catalog is empty")

// ServiceConfig はCatalogServiceの設定。
type ServiceConfig struct {
	// AllowFallback はリモートバックエンドに到達できない場合に進捗更新を成功として扱うかどうか。
	// カタログの参照と受講登録は設定に関わらず常に参照データセットと合成で補う。
	AllowFallback bool
}

// Service はコースカタログと受講登録を提供し、メモリ上のコース一覧を保持する。
type Service struct {
	remote   Backend
	fallback Backend
	selector *backend.Selector[Backend]
	validate *validation.Validator
	metrics  metrics.MetricsCollector

	mu      sync.RWMutex
	courses []model.Course
	loading bool
}

// NewService はServiceを生成する。
// Loadが完了するまでLoadingはtrueを返す。
// remoteがnilの場合はリモートバックエンド未設定として常に参照データセットで動作する。
func NewService(remote Backend, availability backend.Availability, collector metrics.MetricsCollector, config ServiceConfig) *Service {
	if remote == nil {
		availability = backend.Static(false)
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	fallback := NewFallbackBackend()
	return &Service{
		remote:   remote,
		fallback: fallback,
		selector: backend.NewSelector[Backend](availability, remote, fallback, config.AllowFallback),
		validate: validation.New(),
		metrics:  collector,
		loading:  true,
	}
}

type enrollInput struct {
	UserID   string `json:"userId" validate:"required"`
	CourseID string `json:"courseId" validate:"required"`
}

type progressInput struct {
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	Progress     int    `json:"progress" validate:"gte=0,lte=100"`
}

// Load は起動時にコース一覧を読み込む。読み込み中はLoadingがtrueを返す。
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	res := s.ListCourses(ctx)

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	slog.Info("course catalog loaded",
		slog.Int("count", len(res.Value)),
		slog.String("mode", string(res.Mode)),
	)
}

// Courses はメモリ上のコース一覧のコピーを返す。
func (s *Service) Courses() []model.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Course, len(s.courses))
	for i, c := range s.courses {
		out[i] = c.Clone()
	}
	return out
}

// Loading はコース一覧の読み込み中かどうかを返す。
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// ListCourses はコース一覧を取得し、メモリ上の一覧を置き換える。
// リモートの取得が失敗した場合や結果が空の場合は参照データセットを返し、
// リモートの失敗はDiagnosticに入れる。
func (s *Service) ListCourses(ctx context.Context) model.Result[[]model.Course] {
	start := time.Now()
	res := model.Result[[]model.Course]{Mode: model.ModeRemote}

	var err error
	if remote, ok := s.selector.Remote(ctx); ok {
		res.Value, err = remote.ListCourses(ctx)
		if err == nil && len(res.Value) == 0 {
			err = errEmptyCatalog
		}
		if err != nil {
			s.remoteFailed(ctx, "list_courses", err)
			res.Diagnostic = err
		}
	} else {
		err = model.NewBackendUnavailableError(nil)
	}

	if err != nil {
		res.Mode = model.ModeFallback
		res.Value, _ = s.fallback.ListCourses(ctx)
	}
	s.observe("list_courses", res.Mode, start)

	// 中断されたリクエストの結果で取得済みの一覧を置き換えない
	if err != nil && backend.CallerAborted(ctx, err) {
		return res
	}

	s.mu.Lock()
	s.courses = make([]model.Course, len(res.Value))
	for i, c := range res.Value {
		s.courses[i] = c.Clone()
	}
	s.mu.Unlock()

	return res
}

// GetCourse は指定IDのコースを返す。
// リモートの取得が失敗した場合や存在しない場合は参照データセットから探す。
// どちらにもない場合はValueがnilになる。
func (s *Service) GetCourse(ctx context.Context, id string) model.Result[*model.Course] {
	start := time.Now()
	res := model.Result[*model.Course]{Mode: model.ModeRemote}

	if remote, ok := s.selector.Remote(ctx); ok {
		c, err := remote.GetCourse(ctx, id)
		if err != nil {
			s.remoteFailed(ctx, "get_course", err)
			res.Diagnostic = err
		} else if c != nil {
			res.Value = c
			s.observe("get_course", res.Mode, start)
			return res
		}
	}

	res.Mode = model.ModeFallback
	res.Value, _ = s.fallback.GetCourse(ctx, id)
	s.observe("get_course", res.Mode, start)
	return res
}

// Enroll はユーザーをコースに受講登録する。
// リモートで失敗した場合も保存されない受講登録を合成して成功として返し、
// 失敗はDiagnosticに入れる。エラーを返すのは入力が不正な場合のみ。
func (s *Service) Enroll(ctx context.Context, userID, courseID string) (model.Result[*model.Enrollment], error) {
	start := time.Now()

	if err := s.validate.Struct(enrollInput{UserID: userID, CourseID: courseID}); err != nil {
		return model.Result[*model.Enrollment]{}, err
	}

	var remoteErr error
	if remote, ok := s.selector.Remote(ctx); ok {
		res, err := remote.Enroll(ctx, userID, courseID)
		if err == nil {
			res.Mode = model.ModeRemote
			if res.Degraded() {
				s.metrics.RecordSwallowedFailure("enroll")
			}
			s.observe("enroll", res.Mode, start)
			return res, nil
		}
		s.remoteFailed(ctx, "enroll", err)
		remoteErr = err
	} else {
		remoteErr = model.NewBackendUnavailableError(nil)
	}

	res, _ := s.fallback.Enroll(ctx, userID, courseID)
	res.Mode = model.ModeFallback
	res.Diagnostic = remoteErr

	slog.Warn("enrollment was not saved to the remote backend",
		slog.String("operation", "enroll"),
		slog.String("enrollment_id", res.Value.ID),
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
		slog.String("error", remoteErr.Error()),
	)
	s.metrics.RecordSyntheticEnrollment()
	s.metrics.RecordSwallowedFailure("enroll")
	s.observe("enroll", res.Mode, start)
	return res, nil
}

// UpdateProgress は受講登録の進捗率を更新する。
// 進捗率が0から100の範囲外の場合はバックエンドを呼ばずにInvalidArgumentを返す。
// リモートでの失敗は握りつぶさずに返す。
func (s *Service) UpdateProgress(ctx context.Context, enrollmentID string, progress int) error {
	start := time.Now()

	if err := s.validate.Struct(progressInput{EnrollmentID: enrollmentID, Progress: progress}); err != nil {
		return err
	}

	b, mode, err := s.selector.Select(ctx)
	if err != nil {
		return err
	}

	err = b.UpdateProgress(ctx, enrollmentID, progress)
	s.observe("update_progress", mode, start)
	if err != nil {
		if mode == model.ModeRemote {
			s.selector.OnRemoteFailure(ctx, err)
		}
		return err
	}
	return nil
}

// Mode は現時点で選ばれる動作モードを返す。
func (s *Service) Mode(ctx context.Context) model.Mode {
	return s.selector.Mode(ctx)
}

// remoteFailed はリモートの失敗をログに残し、接続障害であれば可用性の判定を破棄する。
// 呼び出し元のctxが終了している場合は判定を破棄しない。
func (s *Service) remoteFailed(ctx context.Context, operation string, err error) {
	slog.Warn("remote catalog operation failed, using fallback",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	s.selector.OnRemoteFailure(ctx, err)
}

func (s *Service) observe(operation string, mode model.Mode, start time.Time) {
	s.metrics.RecordOperation(operation, mode, time.Since(start))
	if mode == model.ModeFallback {
		s.metrics.RecordFallback(operation)
	}
}
