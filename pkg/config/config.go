package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// minJWTSecretLength はJWT署名鍵に要求する最小文字数。
const minJWTSecretLength = 32

// devJWTSecret は DEVCORE_JWT_SECRET 未設定時に使う開発用の署名鍵。
const devJWTSecret = "nexia-dev-secret-key-change-me-please-0123456789"

// Config はBFFの実行時設定。
type Config struct {
	// Port はBFFのリッスンポート。
	Port string `koanf:"port"`
	// CoreURL は転送先コアサービスのベースURL（末尾スラッシュなし）。
	CoreURL string `koanf:"core_url"`
	// ServiceName はヘルスチェックで返すサービス名。
	ServiceName string `koanf:"service_name"`
	// UpstreamTimeout はコアサービス呼び出し1回あたりのタイムアウト。0は無制限。
	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`
	// LogLevel はzerologのログレベル。
	LogLevel string `koanf:"log_level"`
	// LogFormat はログの出力形式（json / console）。
	LogFormat string `koanf:"log_format"`
	// FrontendOrigins はCORSで許可するフロントエンドのオリジン。
	FrontendOrigins []string `koanf:"frontend_origins"`
	// MetricsEnabled が true の場合 /metrics を公開する。
	MetricsEnabled bool `koanf:"metrics_enabled"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DevCore は開発用コアサービスの実行時設定。
type DevCore struct {
	// Port はリッスンポート。
	Port string `koanf:"port"`
	// DBPath はSQLiteのデータソース名。
	DBPath string `koanf:"db_path"`
	// JWTSecret はアクセストークンのHS256署名鍵。
	JWTSecret string `koanf:"jwt_secret"`
	// JWTIssuer はトークンのiss。
	JWTIssuer string `koanf:"jwt_issuer"`
	// JWTTTL はトークンの有効期間。
	JWTTTL time.Duration `koanf:"jwt_ttl"`
	// LogLevel はzerologのログレベル。
	LogLevel string `koanf:"log_level"`
	// LogFormat はログの出力形式。
	LogFormat string `koanf:"log_format"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// bffEnv は環境変数名から設定キーへの対応表。
var bffEnv = map[string]string{
	"PORT":                 "port",
	"NEXIA_CORE_URL":       "core_url",
	"BFF_SERVICE_NAME":     "service_name",
	"BFF_UPSTREAM_TIMEOUT": "upstream_timeout",
	"BFF_LOG_LEVEL":        "log_level",
	"BFF_LOG_FORMAT":       "log_format",
	"BFF_FRONTEND_ORIGINS": "frontend_origins",
	"BFF_METRICS_ENABLED":  "metrics_enabled",
	"BFF_SHUTDOWN_TIMEOUT": "shutdown_timeout",
}

var devCoreEnv = map[string]string{
	"PORT":                     "port",
	"DEVCORE_DB_PATH":          "db_path",
	"DEVCORE_JWT_SECRET":       "jwt_secret",
	"DEVCORE_JWT_ISSUER":       "jwt_issuer",
	"DEVCORE_JWT_TTL":          "jwt_ttl",
	"DEVCORE_LOG_LEVEL":        "log_level",
	"DEVCORE_LOG_FORMAT":       "log_format",
	"DEVCORE_SHUTDOWN_TIMEOUT": "shutdown_timeout",
}

// listKeys はカンマ区切りで複数の値を受け付ける設定キー。
var listKeys = map[string]bool{
	"frontend_origins": true,
}

// Defaults はBFF設定のデフォルト値を返す。
func Defaults() map[string]any {
	return map[string]any{
		"port":             "3001",
		"core_url":         "http://localhost:8081",
		"service_name":     "nexia-bff",
		"upstream_timeout": "30s",
		"log_level":        "info",
		"log_format":       "json",
		"frontend_origins": []string{"http://localhost:3000"},
		"metrics_enabled":  true,
		"shutdown_timeout": "10s",
	}
}

// DevCoreDefaults は開発用コアサービス設定のデフォルト値を返す。
func DevCoreDefaults() map[string]any {
	return map[string]any{
		"port":             "8081",
		"db_path":          "file:devcore.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		"jwt_secret":       devJWTSecret,
		"jwt_issuer":       "nexia",
		"jwt_ttl":          "1h",
		"log_level":        "info",
		"log_format":       "json",
		"shutdown_timeout": "10s",
	}
}

// Load は環境変数からBFFの設定を読み込み、検証する。
func Load() (Config, error) {
	var cfg Config
	if err := load(Defaults(), bffEnv, &cfg); err != nil {
		return Config{}, err
	}

	cfg.CoreURL = strings.TrimRight(strings.TrimSpace(cfg.CoreURL), "/")
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.FrontendOrigins = compact(cfg.FrontendOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c Config) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	u, err := url.Parse(c.CoreURL)
	if err != nil {
		return fmt.Errorf("NEXIA_CORE_URLが不正です: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return errors.New("NEXIA_CORE_URLは絶対URL（scheme://host）である必要があります")
	}
	if c.ServiceName == "" {
		return errors.New("BFF_SERVICE_NAMEが空です")
	}
	if c.UpstreamTimeout < 0 {
		return errors.New("BFF_UPSTREAM_TIMEOUTは0以上である必要があります")
	}
	return nil
}

// Addr はリッスンアドレスを返す。
func (c Config) Addr() string {
	return ":" + c.Port
}

// LoadDevCore は環境変数から開発用コアサービスの設定を読み込み、検証する。
func LoadDevCore() (DevCore, error) {
	var cfg DevCore
	if err := load(DevCoreDefaults(), devCoreEnv, &cfg); err != nil {
		return DevCore{}, err
	}

	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := validatePort(cfg.Port); err != nil {
		return DevCore{}, err
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return DevCore{}, fmt.Errorf("DEVCORE_JWT_SECRETは%d文字以上である必要があります", minJWTSecretLength)
	}
	if cfg.JWTTTL <= 0 {
		return DevCore{}, errors.New("DEVCORE_JWT_TTLは正の値である必要があります")
	}
	return cfg, nil
}

// Addr はリッスンアドレスを返す。
func (c DevCore) Addr() string {
	return ":" + c.Port
}

// load はデフォルト値と環境変数をkoanfに積み重ねてoutにデコードする。
func load(defaults map[string]any, envKeys map[string]string, out any) error {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return fmt.Errorf("デフォルト設定の読み込みに失敗: %w", err)
	}

	// 対応表にない環境変数は空キーとなり無視される。
	// リスト値はデコード時に空白で分割されるため、ここでカンマ区切りのスライスにする
	transform := func(name, value string) (string, any) {
		key := envKeys[name]
		if listKeys[key] {
			return key, strings.Split(value, ",")
		}
		return key, value
	}
	if err := k.Load(env.ProviderWithValue("", ".", transform), nil); err != nil {
		return fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	if err := k.UnmarshalWithConf("", out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("設定のデコードに失敗: %w", err)
	}
	return nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("PORTが不正です: %q", port)
	}
	return nil
}

// compact は前後の空白を除去し、空要素を取り除く。
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
