package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Holdsport API
	APIBase      string
	Username     string
	Password     string
	HTTPTimeout  time.Duration
	APIRateLimit float64
	APIRateBurst int

	// Watch
	ActivityName    string
	JoinActionLabel string
	JoinedStatus    string
	DaysAhead       int
	CheckInterval   time.Duration
	ErrorRetryDelay time.Duration
	StatusInterval  time.Duration

	// Telegram
	TelegramBotToken string
	TelegramChatID   string
	TelegramAdminID  int64

	// Webhook
	WebhookURL string

	// Database（任意）
	DatabaseURL          string
	AttemptRetentionDays int

	// Logging
	LogLevel string
	LogFile  string

	// Server
	ServerPort string
}

// source は設定値の参照元。環境変数を優先し、次に設定ファイルの値を使う。
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

// Load は環境変数からConfigを読み込む。
// pathが指定された場合はYAMLファイルのフラットなキー/値を下地として使い、環境変数で上書きする。
// 必須項目が未設定の場合はエラーを返す。
func Load(path string) (*Config, error) {
	src := source{file: map[string]string{}}
	if path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.Username = src.lookup("HOLDSPORT_USERNAME")
	if cfg.Username == "" {
		missing = append(missing, "HOLDSPORT_USERNAME")
	}

	cfg.Password = src.lookup("HOLDSPORT_PASSWORD")
	if cfg.Password == "" {
		missing = append(missing, "HOLDSPORT_PASSWORD")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.APIBase = strings.TrimRight(src.getString("HOLDSPORT_API_BASE", "https://api.holdsport.dk/v1"), "/")
	cfg.HTTPTimeout = src.getDuration("HTTP_TIMEOUT", 15*time.Second)
	cfg.APIRateLimit = src.getFloat("HOLDSPORT_RATE_LIMIT", 2)
	cfg.APIRateBurst = src.getInt("HOLDSPORT_RATE_BURST", 4)
	cfg.ActivityName = strings.TrimSpace(src.getString("HOLDSPORT_ACTIVITY_NAME", "Herre 3 træning"))
	cfg.JoinActionLabel = strings.TrimSpace(src.getString("JOIN_ACTION_LABEL", "Tilmeld"))
	cfg.JoinedStatus = strings.TrimSpace(src.getString("JOINED_STATUS", "tilmeldt"))
	cfg.DaysAhead = src.getInt("DAYS_AHEAD", 7)
	cfg.CheckInterval = src.getDuration("CHECK_INTERVAL", 180*time.Second)
	cfg.ErrorRetryDelay = src.getDuration("ERROR_RETRY_DELAY", 60*time.Second)
	cfg.StatusInterval = src.getDuration("STATUS_INTERVAL", 12*time.Hour)
	cfg.TelegramBotToken = src.getString("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = src.getString("TELEGRAM_CHAT_ID", "")
	cfg.TelegramAdminID = src.getInt64("TELEGRAM_ADMIN_ID", 0)
	cfg.WebhookURL = src.getString("WEBHOOK_URL", "")
	cfg.DatabaseURL = src.getString("DATABASE_URL", "")
	cfg.AttemptRetentionDays = src.getInt("ATTEMPT_RETENTION_DAYS", 90)
	cfg.LogLevel = src.getString("LOG_LEVEL", "info")
	cfg.LogFile = src.getString("LOG_FILE", "")
	cfg.ServerPort = src.getString("SERVER_PORT", "8080")

	if cfg.DaysAhead < 0 {
		return nil, fmt.Errorf("DAYS_AHEAD must not be negative: %d", cfg.DaysAhead)
	}
	if cfg.CheckInterval <= 0 || cfg.ErrorRetryDelay <= 0 || cfg.StatusInterval <= 0 {
		return nil, fmt.Errorf("intervals must be positive")
	}

	return cfg, nil
}

// TelegramEnabled はTelegram通知の認証情報が揃っているかを返す。
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// AdminEnabled はTelegramの管理コマンドを受け付けるかを返す。
func (c *Config) AdminEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAdminID != 0
}

// readFile はYAMLファイルをフラットなキー/値として読み込む。
// 数値や真偽値もそのまま文字列化して環境変数と同じ扱いにする。
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func (s source) getString(key, defaultVal string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return defaultVal
}

func (s source) getInt(key string, defaultVal int) int {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getInt64(key string, defaultVal int64) int64 {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getFloat(key string, defaultVal float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// getDuration はGoのduration表記（"3m"）に加え、秒数のみの表記（"180"）も受け付ける。
func (s source) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
