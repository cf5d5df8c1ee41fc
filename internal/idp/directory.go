package idp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/nao1215/hubgate/internal/auth"
	"github.com/nao1215/hubgate/pkg/httpclient"
	"golang.org/x/time/rate"
)

// DirectoryClient はIDプロバイダーのユーザーAPIからプロフィールを取得する。
// プロバイダー側のレート制限を超えないよう、呼び出しをトークンバケットで絞る。
type DirectoryClient struct {
	client  *httpclient.Client
	limiter *rate.Limiter
}

// DirectoryConfig はDirectoryClientの設定。
type DirectoryConfig struct {
	// APIURL はユーザーAPIのベースURL。
	APIURL string
	// SecretKey はAPI呼び出しに使うシークレットキー。
	SecretKey string
	// Timeout はリクエスト1回あたりのタイムアウト。
	Timeout time.Duration
	// RatePerSecond は1秒あたりの最大呼び出し数。0以下なら制限しない。
	RatePerSecond float64
	// Burst はバースト許容数。
	Burst int
}

// NewDirectoryClient は新しいDirectoryClientを生成する。
func NewDirectoryClient(cfg DirectoryConfig) *DirectoryClient {
	opts := []httpclient.Option{httpclient.WithBearerToken(cfg.SecretKey)}
	if cfg.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.Timeout))
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &DirectoryClient{
		client:  httpclient.New(cfg.APIURL, opts...),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// GetUser はユーザーIDでプロフィールを取得する。
func (d *DirectoryClient) GetUser(ctx context.Context, id string) (*auth.Profile, error) {
	if id == "" {
		return nil, errors.New("ユーザーIDが空です")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レート制限の待機に失敗: %w", err)
	}

	var p auth.Profile
	if err := d.client.GetJSON(ctx, "/v1/users/"+url.PathEscape(id), &p); err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗: %w", err)
	}
	return &p, nil
}
