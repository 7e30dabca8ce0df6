package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/seminar/internal/auth"
	"github.com/hitoshi/seminar/internal/config"
	"github.com/hitoshi/seminar/internal/database"
	"github.com/hitoshi/seminar/internal/flash"
	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/handler"
	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/location"
	"github.com/hitoshi/seminar/internal/logger"
	"github.com/hitoshi/seminar/internal/mail"
	"github.com/hitoshi/seminar/internal/metrics"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/profile"
	"github.com/hitoshi/seminar/internal/repository"
	"github.com/hitoshi/seminar/internal/security"
	"github.com/hitoshi/seminar/internal/token"
	"github.com/hitoshi/seminar/internal/user"
	"github.com/hitoshi/seminar/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成
	logger.SetupDefault(w, cfg.LogLevel)

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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newMetrics はプロセス単位のレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newMailer はMAIL_BACKENDに応じたMailerを返す。
func newMailer(cfg *config.Config) mail.Mailer {
	if cfg.MailBackend == "smtp" {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	return mail.NewLogMailer(slog.Default(), cfg.MailFrom)
}

// buildRouter は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// 戻り値のstopはレートリミッターのバックグラウンド処理を止める。
func buildRouter(cfg *config.Config, db *sql.DB) (http.Handler, func(), error) {
	// 1. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	locationRepo := repository.NewPostgresLocationRepo(db)
	gradeRepo := repository.NewPostgresGradeRepo(db)

	// 2. 共通部品
	validator := form.NewValidator()
	sanitizer := security.NewTextSanitizer()
	reg, collector := newMetrics()

	bundle, err := locale.NewBundle(cfg.Language)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load translations: %w", err)
	}
	composer, err := mail.NewComposer(cfg.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load mail templates: %w", err)
	}
	flashes := flash.NewStore(flash.Config{
		Secret:       cfg.SessionSecret,
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	})
	renderer, err := handler.NewRenderer(flashes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load page templates: %w", err)
	}

	// 3. ドメインサービス
	locationService := location.NewService(locationRepo, gradeRepo)
	profileService := profile.NewService(userRepo, profileRepo, locationService, validator, sanitizer)
	authService := auth.NewService(userRepo, sessionRepo, validator,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(user.Deps{
		UserRepo:     userRepo,
		SessionRepo:  sessionRepo,
		Locations:    locationService,
		Validator:    validator,
		Sanitizer:    sanitizer,
		VerifyTokens: token.NewGenerator(cfg.TokenSecret, cfg.TokenTTL, token.PurposeEmailVerification),
		ResetTokens:  token.NewGenerator(cfg.TokenSecret, cfg.TokenTTL, token.PurposePasswordReset),
		Mailer:       newMailer(cfg),
		Composer:     composer,
		Metrics:      collector,
	})

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.FormRateLimiterConfig(cfg.RateLimitForms))

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxy:        cfg.TrustProxy,
		RateLimiter:       rateLimiter,
		HTTPMetrics:       collector,
		MetricsHandler:    metrics.Handler(reg),
		Locales:           bundle,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Cookies: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},

		Renderer:  renderer,
		Validator: validator,

		AuthService:     authService,
		LoginRecorder:   collector,
		UserService:     userService,
		ProfileService:  profileService,
		LocationService: locationService,
	}

	return handler.NewRouter(deps), rateLimiter.Stop, nil
}

// runServe はHTTPサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	router, stopLimiter, err := buildRouter(cfg, db)
	if err != nil {
		return err
	}
	defer stopLimiter()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // 登録時のメール送信を含む
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
			stop <- syscall.SIGTERM
		}
	}()

	<-stop
	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除をSESSION_CLEANUP_INTERVALごとに実行する。
// WORKER_METRICS_PORTが設定されていれば削除件数を/metricsで公開する。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	reg, collector := newMetrics()
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	if cfg.WorkerMetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("worker metrics listen error", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// コンテキストがキャンセルされるまでブロックする
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
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
