package idp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/hubgate/internal/auth"
)

// JWKSVerifier はIDプロバイダーが公開するJWKSでトークンの署名を検証する。
// 鍵セットはkidが未知の場合に再取得される。
type JWKSVerifier struct {
	keys *oidc.RemoteKeySet
	opts ValidationOptions
}

// NewJWKSVerifier はjwksURLから鍵を取得するJWKSVerifierを生成する。
// ctxは鍵取得に使うHTTPクライアントの解決にのみ使われる。
func NewJWKSVerifier(ctx context.Context, jwksURL string, opts ValidationOptions) *JWKSVerifier {
	return &JWKSVerifier{
		keys: oidc.NewRemoteKeySet(ctx, jwksURL),
		opts: opts,
	}
}

// VerifyToken は署名を検証した後、時刻系クレームとazpを検証してペイロードを返す。
func (v *JWKSVerifier) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	payload, err := v.keys.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("署名の検証に失敗: %w", err)
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("ペイロードの解析に失敗: %w", err)
	}
	if err := v.opts.validate(claims); err != nil {
		return nil, err
	}
	return auth.Claims(claims), nil
}
