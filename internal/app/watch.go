package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/holdwatch/internal/admin"
	"github.com/hitoshi/holdwatch/internal/config"
	"github.com/hitoshi/holdwatch/internal/database"
	"github.com/hitoshi/holdwatch/internal/handler"
	"github.com/hitoshi/holdwatch/internal/holdsport"
	"github.com/hitoshi/holdwatch/internal/metrics"
	"github.com/hitoshi/holdwatch/internal/middleware"
	"github.com/hitoshi/holdwatch/internal/notify"
	"github.com/hitoshi/holdwatch/internal/repository"
	"github.com/hitoshi/holdwatch/internal/security"
	"github.com/hitoshi/holdwatch/internal/status"
	"github.com/hitoshi/holdwatch/internal/telegram"
	"github.com/hitoshi/holdwatch/internal/worker/cleanup"
	"github.com/hitoshi/holdwatch/internal/worker/report"
	"github.com/hitoshi/holdwatch/internal/worker/signup"
)

// ライフサイクル通知
const (
	msgStarted    = "🚀 Holdsport Bot started!"
	msgStopped    = "🛑 Holdsport Bot stopped!"
	msgRestarting = "♻️ Holdsport Bot restarting now!"
)

const (
	// shutdownTimeout はHTTPサーバーのグレースフルシャットダウンの上限。
	shutdownTimeout = 30 * time.Second
	// finalNotifyTimeout は終了通知の送信に使う上限。
	finalNotifyTimeout = 10 * time.Second
	// adminHTTPTimeout はgetUpdatesのロングポーリング（30秒）より長くする。
	adminHTTPTimeout = 45 * time.Second
	// cleanupInterval は試行履歴の削除ジョブの実行間隔。
	cleanupInterval = 24 * time.Hour
	// attemptMemoryCapacity はDB未使用時に保持する試行履歴の件数。
	attemptMemoryCapacity = 100
)

// runWatch は監視モードで起動する。
// 全依存関係をワイヤリングし、ポーリングループ、定期レポート、管理コマンド、
// HTTPサーバーを起動する。SIGINT/SIGTERMまたは管理コマンドで終了する。
func runWatch(cfg *config.Config) error {
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	controller := newProcessController(cancel)

	// 1. 稼働状況とメトリクス
	runStatus := status.New(time.Now)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. 試行履歴ストア（DATABASE_URLが未設定ならメモリ）
	attempts, db, err := openAttemptStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 3. 通知チャネル
	var telegramClient *telegram.Client
	if cfg.TelegramEnabled() || cfg.AdminEnabled() {
		telegramClient = telegram.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout}, logger, "", cfg.TelegramBotToken,
		)
	}
	dispatcher, err := buildDispatcher(cfg, telegramClient, collector, logger)
	if err != nil {
		return err
	}

	// 4. Holdsportクライアントとサインアップ処理
	holdsportClient := holdsport.NewClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		logger,
		holdsport.ClientConfig{
			BaseURL:       cfg.APIBase,
			Username:      cfg.Username,
			Password:      cfg.Password,
			RatePerSecond: cfg.APIRateLimit,
			Burst:         cfg.APIRateBurst,
		},
	)

	executor := signup.NewExecutor(signup.ExecutorDeps{
		Performer:     holdsportClient,
		Notifier:      dispatcher,
		Recorder:      attempts,
		Sanitizer:     security.NewTextSanitizer(),
		Status:        runStatus,
		Metrics:       collector,
		Logger:        logger,
		VersionPrefix: holdsportClient.VersionPrefix(),
	})

	scheduler := signup.NewScheduler(
		holdsportClient,
		signup.NewGate(cfg.JoinActionLabel),
		executor,
		runStatus,
		collector,
		logger,
		signup.SchedulerConfig{
			Target:       cfg.ActivityName,
			JoinedStatus: cfg.JoinedStatus,
			DaysAhead:    cfg.DaysAhead,
			Interval:     cfg.CheckInterval,
			ErrorDelay:   cfg.ErrorRetryDelay,
		},
	)

	// 5. HTTPサーバー
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), logger)
	defer rateLimiter.Stop()

	routerDeps := &handler.RouterDeps{
		Logger:      logger,
		RateLimiter: rateLimiter,
		Status:      runStatus,
		Attempts:    attempts,
		Metrics:     metrics.Handler(registry),
	}
	// nilの*sql.DBをインターフェースに入れないようにする
	if db != nil {
		routerDeps.HealthChecker = db
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(routerDeps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case sig := <-stop:
			logger.Info("shutdown signal received", slog.String("signal", sig.String()))
			controller.Stop()
		case <-ctx.Done():
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			controller.Stop()
		}
	}()

	dispatcher.Notify(ctx, msgStarted)
	logger.Info("watcher starting",
		slog.Any("channels", dispatcher.Channels()),
		slog.Duration("check_interval", cfg.CheckInterval),
		slog.Int("days_ahead", cfg.DaysAhead),
	)

	var wg sync.WaitGroup
	runBackground := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	runBackground(report.NewJob(runStatus, dispatcher, logger, cfg.StatusInterval).Start)

	if cfg.AdminEnabled() {
		adminClient := telegram.NewClient(
			&http.Client{Timeout: adminHTTPTimeout}, logger, "", cfg.TelegramBotToken,
		)
		listener := admin.NewListener(
			adminClient, telegramClient, runStatus, controller, cfg.TelegramAdminID, logger,
		)
		runBackground(listener.Start)
	}

	if db != nil {
		cleanupJob := cleanup.NewCleanupJob(db, logger, cfg.AttemptRetentionDays)
		runBackground(func(ctx context.Context) { cleanupJob.Start(ctx, cleanupInterval) })
	}

	// ポーリングループをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	runStatus.SetRunning(false)
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	wg.Wait()

	// 共有コンテキストはキャンセル済みのため、新しいコンテキストで最終通知を送る
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), finalNotifyTimeout)
	defer notifyCancel()
	if controller.restartRequested() {
		dispatcher.Notify(notifyCtx, msgRestarting)
	} else {
		dispatcher.Notify(notifyCtx, msgStopped)
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	default:
	}

	if controller.restartRequested() {
		logger.Info("watcher stopped for restart")
		return ErrRestartRequested
	}

	logger.Info("watcher stopped gracefully")
	return nil
}

// openAttemptStore は試行履歴のストアを返す。
// DATABASE_URLが設定されている場合はPostgreSQLに接続してマイグレーションを適用する。
// 返された*sql.DBはDB未使用時にnilとなる。
func openAttemptStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.AttemptRepository, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL is not set, keeping attempt history in memory",
			slog.Int("capacity", attemptMemoryCapacity),
		)
		return repository.NewMemoryAttemptRepo(attemptMemoryCapacity), nil, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Ping(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Uint64("schema_version", uint64(version)),
	)
	return repository.NewPostgresAttemptRepo(db), db, nil
}

// buildDispatcher は設定に応じた通知チャネルを束ねたDispatcherを生成する。
// どのチャネルも設定されていない場合、通知はログのみとなる。
func buildDispatcher(cfg *config.Config, telegramClient *telegram.Client, collector metrics.MetricsCollector, logger *slog.Logger) (*notify.Dispatcher, error) {
	var channels []notify.Channel

	if cfg.TelegramEnabled() && telegramClient != nil {
		channels = append(channels, notify.NewTelegramChannel(telegramClient, cfg.TelegramChatID))
	}

	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookChannel(security.NewSSRFGuard(), cfg.WebhookURL, cfg.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid WEBHOOK_URL: %w", err)
		}
		channels = append(channels, webhook)
	}

	if len(channels) == 0 {
		logger.Warn("no notification channel is configured")
	}

	return notify.NewDispatcher(logger, collector, cfg.HTTPTimeout, channels...), nil
}
