// Package idp は外部IDプロバイダーとの連携を提供する。
//
// トークン検証オラクル（固定公開鍵またはリモートJWKS）と、
// プロフィール補完用のディレクトリAPIクライアントを含む。
// いずれもauthパッケージのインターフェースを満たす。
package idp

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// errUnauthorizedParty はazpクレームが許可リストに含まれないことを表す。
var errUnauthorizedParty = errors.New("azpクレームが許可されていません")

// ValidationOptions はトークンのクレーム検証の設定。
type ValidationOptions struct {
	// Issuer は期待するissクレーム。空なら検証しない。
	Issuer string
	// AuthorizedParties は許可するazpクレーム。空なら検証しない。
	AuthorizedParties []string
	// Leeway は時刻系クレームの許容誤差。
	Leeway time.Duration
}

// parserOptions はjwtパーサー・バリデーター共通のオプションを返す。
func (o ValidationOptions) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(o.Leeway),
	}
	if o.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.Issuer))
	}
	return opts
}

// validate は署名検証済みのクレームを検証する。
func (o ValidationOptions) validate(claims jwt.MapClaims) error {
	if err := jwt.NewValidator(o.parserOptions()...).Validate(claims); err != nil {
		return fmt.Errorf("クレーム検証に失敗: %w", err)
	}
	return o.checkAuthorizedParty(claims)
}

// checkAuthorizedParty はazpクレームが許可リストに含まれるかを確認する。
// azpが無いトークンは許可する。
func (o ValidationOptions) checkAuthorizedParty(claims jwt.MapClaims) error {
	if len(o.AuthorizedParties) == 0 {
		return nil
	}
	azp, _ := claims["azp"].(string)
	if azp == "" || slices.Contains(o.AuthorizedParties, azp) {
		return nil
	}
	return fmt.Errorf("%w: %s", errUnauthorizedParty, azp)
}
