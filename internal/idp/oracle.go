package idp

import (
	"context"
	"errors"

	"github.com/nao1215/hubgate/internal/auth"
)

// ErrNoVerificationKey は検証用の鍵が設定されていないことを表す。
var ErrNoVerificationKey = errors.New("IDP_JWT_KEY または IDP_JWKS_URL の設定が必要です")

// OracleConfig はトークン検証オラクルの設定。
type OracleConfig struct {
	// JWTKey はPEM形式のRSA公開鍵。設定されていればJWKSより優先する。
	JWTKey string
	// JWKSURL はJWKSエンドポイントのURL。
	JWKSURL string
	// Validation はクレーム検証の設定。
	Validation ValidationOptions
}

// NewTokenVerifier は設定に応じた検証オラクルを返す。
// 固定鍵があればKeyVerifier、なければJWKSVerifierを使う。
func NewTokenVerifier(ctx context.Context, cfg OracleConfig) (auth.TokenVerifier, error) {
	switch {
	case cfg.JWTKey != "":
		v, err := NewKeyVerifier(cfg.JWTKey, cfg.Validation)
		if err != nil {
			return nil, err
		}
		return v, nil
	case cfg.JWKSURL != "":
		return NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.Validation), nil
	default:
		return nil, ErrNoVerificationKey
	}
}
