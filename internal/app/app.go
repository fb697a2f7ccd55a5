package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/learnhub/internal/backend"
	"github.com/hitoshi/learnhub/internal/catalog"
	"github.com/hitoshi/learnhub/internal/config"
	"github.com/hitoshi/learnhub/internal/database"
	"github.com/hitoshi/learnhub/internal/handler"
	"github.com/hitoshi/learnhub/internal/identity"
	"github.com/hitoshi/learnhub/internal/logger"
	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込んでログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("backend_configured", cfg.BackendConfigured()),
		slog.Bool("fallback_enabled", cfg.FallbackEnabled),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// components はserveモードで動かす依存関係一式。
type components struct {
	db       *sql.DB
	identity *identity.Service
	catalog  *catalog.Service
	cleanup  *cleanup.CleanupJob
	limiter  *middleware.RateLimiter
	handler  http.Handler
}

// buildComponents は設定から全依存関係をワイヤリングする。
// DATABASE_URLが空の場合はリモートバックエンドを構築せず、フォールバックのみで動作する。
func buildComponents(cfg *config.Config, reg *prometheus.Registry) (*components, error) {
	collector := metrics.NewCollector(reg)
	c := &components{}

	var (
		identityRemote identity.Backend
		catalogRemote  catalog.Backend
		availability   backend.Availability = backend.Static(false)
	)

	if cfg.BackendConfigured() {
		// 1. DB接続（到達性はProbeが確認する）
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		c.db = db

		// 2. リポジトリの初期化
		accountRepo := repository.NewPostgresAccountRepo(db)
		profileRepo := repository.NewPostgresProfileRepo(db)
		sessionRepo := repository.NewPostgresSessionRepo(db)
		courseRepo := repository.NewPostgresCourseRepo(db)
		enrollmentRepo := repository.NewPostgresEnrollmentRepo(db)

		// 3. リモートバックエンドの初期化
		identityRemote = identity.NewRemoteBackend(
			accountRepo, profileRepo, sessionRepo,
			security.NewBcryptHasher(0),
			identity.RemoteConfig{SessionMaxAge: cfg.AuthSessionMaxAge},
		)
		catalogRemote = catalog.NewRemoteBackend(
			courseRepo, enrollmentRepo, profileRepo,
			security.NewContentSanitizer(),
		)
		availability = backend.NewProbe(db, cfg.BackendProbeInterval, collector)

		c.cleanup = cleanup.NewCleanupJob(db, slog.Default())
	} else {
		collector.RecordBackendAvailable(false)
		slog.Warn("remote backend is not configured",
			slog.Bool("fallback_enabled", cfg.FallbackEnabled),
		)
	}

	// 4. ドメインサービスの初期化
	c.identity = identity.NewService(
		identityRemote, identity.NewFallbackBackend(), availability,
		session.New(), collector,
		identity.ServiceConfig{AllowFallback: cfg.FallbackEnabled},
	)
	c.catalog = catalog.NewService(
		catalogRemote, availability, collector,
		catalog.ServiceConfig{AllowFallback: cfg.FallbackEnabled},
	)

	// 5. ルーターの構築
	c.limiter = middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	c.handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		StatusRecorder:    collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       c.limiter,
		IdentityService:   c.identity,
		CatalogService:    c.catalog,
		MetricsHandler:    metrics.Handler(reg),
	})

	return c, nil
}

// start はセッションの接続、カタログの読み込み、セッションのクリーンアップを開始する。
// ctxが終了するとすべて停止する。
func (c *components) start(ctx context.Context, cleanupInterval time.Duration) {
	c.identity.Start(ctx)
	go c.catalog.Load(ctx)
	if c.cleanup != nil {
		go c.cleanup.Start(ctx, cleanupInterval)
	}
}

// Close は保持しているリソースを解放する。
func (c *components) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
	if c.db != nil {
		c.db.Close()
	}
}

// runServe はAPIサーバーモードで起動する。
// ctxが終了する（SIGINTまたはSIGTERMを受信する）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	c, err := buildComponents(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer c.Close()

	c.start(ctx, cfg.SessionCleanupInterval)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はリモートバックエンドのマイグレーションを実行する。
// すべての未適用マイグレーション（スキーマと初期カタログ）を順番に適用する。
func runMigrate(cfg *config.Config) error {
	if !cfg.BackendConfigured() {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
