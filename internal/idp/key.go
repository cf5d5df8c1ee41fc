package idp

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/hubgate/internal/auth"
)

// KeyVerifier は設定された固定のRSA公開鍵でトークンを検証する。
// ネットワークを使わないため、JWKSを取得できない環境でも使える。
type KeyVerifier struct {
	key  *rsa.PublicKey
	opts ValidationOptions
}

// NewKeyVerifier はPEM形式のRSA公開鍵からKeyVerifierを生成する。
// 環境変数で渡される "\n" のエスケープは改行として扱う。
func NewKeyVerifier(pemKey string, opts ValidationOptions) (*KeyVerifier, error) {
	pemKey = strings.ReplaceAll(pemKey, `\n`, "\n")
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("公開鍵の解析に失敗: %w", err)
	}
	return &KeyVerifier{key: key, opts: opts}, nil
}

// VerifyToken はRS256署名と時刻系クレームを検証し、ペイロードを返す。
func (v *KeyVerifier) VerifyToken(_ context.Context, token string) (auth.Claims, error) {
	claims := jwt.MapClaims{}
	opts := append(v.opts.parserOptions(), jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	if _, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return v.key, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if err := v.opts.checkAuthorizedParty(claims); err != nil {
		return nil, err
	}
	return auth.Claims(claims), nil
}
