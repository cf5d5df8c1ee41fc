// Package config は環境変数からサービスの設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoVerificationKey はトークン検証用の鍵が設定されていないことを表す。
var ErrNoVerificationKey = errors.New("IDP_JWT_KEY または IDP_JWKS_URL の設定が必要です")

// DefaultDatabaseDSN はユーザーストアの既定のデータソース名。
const DefaultDatabaseDSN = "file:/data/gateway.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Gateway はゲートウェイプロセスの設定。
type Gateway struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// LogLevel はログレベル。
	LogLevel string
	// DatabaseDSN はユーザーストアのデータソース名。
	DatabaseDSN string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// StoreTimeout はユーザーストア操作1回あたりのタイムアウト。
	StoreTimeout time.Duration
	// RetryAfter はストア障害時にクライアントへ返す再試行までの待ち時間。
	RetryAfter time.Duration
	// IDP は外部IDプロバイダーの設定。
	IDP IDP
	// Services はヘルスチェック対象のバックエンドサービス。
	Services Services
}

// IDP は外部IDプロバイダーとの連携設定。
type IDP struct {
	// JWTKey はPEM形式のRSA公開鍵。
	JWTKey string
	// JWKSURL はJWKSエンドポイントのURL。
	JWKSURL string
	// Issuer は期待するissクレーム。
	Issuer string
	// AuthorizedParties は許可するazpクレーム。
	AuthorizedParties []string
	// Leeway は時刻系クレームの許容誤差。
	Leeway time.Duration
	// APIURL はユーザーディレクトリAPIのベースURL。空ならディレクトリ参照を行わない。
	APIURL string
	// SecretKey はディレクトリAPIのシークレットキー。
	SecretKey string
	// Timeout は検証オラクル・ディレクトリ呼び出し1回あたりのタイムアウト。
	Timeout time.Duration
	// RatePerSecond はディレクトリAPIの1秒あたり最大呼び出し数。
	RatePerSecond float64
	// Burst はディレクトリAPI呼び出しのバースト許容数。
	Burst int
}

// Services はバックエンドサービスの接続先。
type Services struct {
	CatalogURL  string
	MediaURL    string
	SearchURL   string
	PingTimeout time.Duration
}

// Worker はバックエンドワーカープロセスの設定。
type Worker struct {
	// Service はサービス名。
	Service string
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// LogLevel はログレベル。
	LogLevel string
}

// Load は環境変数からゲートウェイの設定を読み込む。
func Load() (*Gateway, error) {
	return load(os.Getenv)
}

// load は環境変数の取得関数を受け取って設定を組み立てる。
func load(getenv func(string) string) (*Gateway, error) {
	r := reader{getenv: getenv}

	cfg := &Gateway{
		Port:           r.str("PORT", "8080"),
		LogLevel:       r.str("LOG_LEVEL", "info"),
		DatabaseDSN:    r.str("DATABASE_DSN", DefaultDatabaseDSN),
		AllowedOrigins: r.list("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		StoreTimeout:   r.duration("STORE_TIMEOUT", 3*time.Second),
		RetryAfter:     r.duration("RETRY_AFTER", 5*time.Second),
		IDP: IDP{
			JWTKey:            r.str("IDP_JWT_KEY", ""),
			JWKSURL:           r.str("IDP_JWKS_URL", ""),
			Issuer:            r.str("IDP_ISSUER", ""),
			AuthorizedParties: r.list("IDP_AUTHORIZED_PARTIES", ""),
			Leeway:            r.duration("IDP_CLOCK_SKEW", 5*time.Second),
			APIURL:            r.str("IDP_API_URL", ""),
			SecretKey:         r.str("IDP_SECRET_KEY", ""),
			Timeout:           r.duration("IDP_TIMEOUT", 5*time.Second),
			RatePerSecond:     r.floatValue("IDP_RATE_LIMIT", 10),
			Burst:             r.intValue("IDP_RATE_BURST", 20),
		},
		Services: Services{
			CatalogURL:  r.str("CATALOG_URL", "http://localhost:8081"),
			MediaURL:    r.str("MEDIA_URL", "http://localhost:8082"),
			SearchURL:   r.str("SEARCH_URL", "http://localhost:8083"),
			PingTimeout: r.duration("HEALTH_PING_TIMEOUT", 3*time.Second),
		},
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Gateway) Validate() error {
	if c.IDP.JWTKey == "" && c.IDP.JWKSURL == "" {
		return ErrNoVerificationKey
	}
	if c.IDP.APIURL != "" && c.IDP.SecretKey == "" {
		return errors.New("IDP_API_URL を設定する場合は IDP_SECRET_KEY も必要です")
	}
	for name, d := range map[string]time.Duration{
		"STORE_TIMEOUT":       c.StoreTimeout,
		"IDP_TIMEOUT":         c.IDP.Timeout,
		"HEALTH_PING_TIMEOUT": c.Services.PingTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s は正の値である必要があります: %s", name, d)
		}
	}
	return nil
}

// LoadWorker は環境変数からワーカーの設定を読み込む。
// PORTが未設定ならdefaultPortを使う。
func LoadWorker(service, defaultPort string) Worker {
	r := reader{getenv: os.Getenv}
	return Worker{
		Service:  service,
		Port:     r.str("PORT", defaultPort),
		LogLevel: r.str("LOG_LEVEL", "info"),
	}
}

// reader は環境変数を型付きで読み出す。最初の解析エラーを保持する。
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key, def string) []string {
	var out []string
	for _, s := range strings.Split(r.str(key, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) floatValue(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *reader) intValue(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("環境変数 %s の値が不正です: %w", key, err)
	}
}
