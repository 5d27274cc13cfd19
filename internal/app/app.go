package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/hitoshi/holdwatch/internal/config"
	"github.com/hitoshi/holdwatch/internal/database"
	"github.com/hitoshi/holdwatch/internal/logger"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVELとLOG_FILEに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
// 返されたclose関数はログファイルを閉じるため、終了時に必ず呼び出すこと。
func Init(w io.Writer, configPath string) (*config.Config, func() error, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数（と任意の設定ファイル）から設定を読み込む
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログを再構成する
	if w == nil {
		w = os.Stdout
	}
	out, closeLog, err := logger.WithFile(w, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	logger.SetupDefault(out, logger.ParseLevel(cfg.LogLevel))

	return cfg, closeLog, nil
}

// Run はアプリケーションのメインエントリーポイント。
// フラグとサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	flags := pflag.NewFlagSet("holdwatch", pflag.ContinueOnError)
	configPath := flags.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file (env vars take precedence)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("invalid arguments: %w", err)
	}

	cmd := ParseCommand(flags.Args())

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, closeLog, err := Init(w, *configPath)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer closeLog()

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base", cfg.APIBase),
		slog.String("activity", cfg.ActivityName),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runWatch(cfg)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migration failed: DATABASE_URL is not set")
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
