package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/hubgate/internal/user"
)

// errMissingSubject はトークンにsubクレームが無いことを表す。
var errMissingSubject = errors.New("トークンにsubクレームがありません")

// Claims は検証済みトークンのペイロード。
type Claims map[string]any

// String はクレームの文字列値を返す。存在しない、または文字列でない場合は空文字列。
func (c Claims) String(key string) string {
	if s, ok := c[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// TokenVerifier は外部IDプロバイダーの検証オラクル。
// 署名・有効期限等を検証し、ペイロードを返す。
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Claims, error)
}

// EmailAddress はディレクトリが保持するメールアドレスの1件。
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// Profile はIDプロバイダーのディレクトリから取得したユーザープロフィール。
type Profile struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	Username              string         `json:"username"`
	PublicMetadata        map[string]any `json:"public_metadata"`
}

// PrimaryEmail は主メールアドレスを返す。
// 主アドレスが見つからなければ最初のアドレス、それも無ければ空文字列。
func (p *Profile) PrimaryEmail() string {
	for _, e := range p.EmailAddresses {
		if e.ID == p.PrimaryEmailAddressID && e.EmailAddress != "" {
			return e.EmailAddress
		}
	}
	if len(p.EmailAddresses) > 0 {
		return p.EmailAddresses[0].EmailAddress
	}
	return ""
}

// FullName は空でない姓名を半角スペース1つで連結して返す。
func (p *Profile) FullName() string {
	parts := make([]string, 0, 2)
	for _, s := range []string{p.FirstName, p.LastName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// IsAdmin は公開メタデータで管理者フラグが立っているかを返す。
func (p *Profile) IsAdmin() bool {
	role, _ := p.PublicMetadata["role"].(string)
	return role == string(user.RoleAdmin)
}

// Directory はIDプロバイダーのユーザープロフィール参照API。
type Directory interface {
	GetUser(ctx context.Context, id string) (*Profile, error)
}

// IdentityClaim はトークン検証で得られた暫定的な身元情報。
// ExternalIDは必ず空でない。その他は空文字列の場合がある。
type IdentityClaim struct {
	ExternalID   string
	Email        string
	DisplayName  string
	DeclaredRole user.Role
}

// Verifier はBearerトークンを検証し、IdentityClaimを組み立てる。
type Verifier struct {
	// tokens はトークン検証オラクル。
	tokens TokenVerifier
	// directory はプロフィール補完用のディレクトリ。
	directory Directory
	// timeout は外部呼び出し1回あたりのタイムアウト。
	timeout time.Duration
}

// NewVerifier は新しいVerifierを生成する。timeoutが0以下の場合はタイムアウトを設定しない。
func NewVerifier(tokens TokenVerifier, directory Directory, timeout time.Duration) *Verifier {
	return &Verifier{tokens: tokens, directory: directory, timeout: timeout}
}

// Verify はトークンを検証してIdentityClaimを返す。
// 失敗理由に関わらず、エラーはすべてinvalid_credentialになる。
// トークンにemailとnameが揃っていればディレクトリは呼ばない。
func (v *Verifier) Verify(ctx context.Context, token string) (IdentityClaim, error) {
	claims, err := v.verifyToken(ctx, token)
	if err != nil {
		return IdentityClaim{}, reject(KindInvalidCredential, err)
	}

	sub := claims.String("sub")
	if sub == "" {
		return IdentityClaim{}, reject(KindInvalidCredential, errMissingSubject)
	}

	id := IdentityClaim{
		ExternalID:  sub,
		Email:       claims.String("email"),
		DisplayName: firstNonEmpty(claims.String("name"), claims.String("full_name")),
	}
	role, hasRole := declaredRole(claims)

	if id.Email == "" || id.DisplayName == "" {
		profile, err := v.lookup(ctx, sub)
		if err != nil {
			return IdentityClaim{}, reject(KindInvalidCredential, err)
		}
		if id.Email == "" {
			id.Email = profile.PrimaryEmail()
		}
		if id.DisplayName == "" {
			id.DisplayName = firstNonEmpty(profile.FullName(), profile.Username, id.Email, sub)
		}
		if !hasRole && profile.IsAdmin() {
			role, hasRole = user.RoleAdmin, true
		}
	}

	if !hasRole {
		role = user.RoleUser
	}
	id.DeclaredRole = role
	return id, nil
}

func (v *Verifier) verifyToken(ctx context.Context, token string) (Claims, error) {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	claims, err := v.tokens.VerifyToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("トークン検証に失敗: %w", err)
	}
	return claims, nil
}

func (v *Verifier) lookup(ctx context.Context, sub string) (*Profile, error) {
	if v.directory == nil {
		return nil, errors.New("ディレクトリが設定されていません")
	}

	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	profile, err := v.directory.GetUser(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("プロフィール取得に失敗: %w", err)
	}
	if profile == nil {
		return nil, errors.New("プロフィールが空です")
	}
	return profile, nil
}

func (v *Verifier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.timeout)
}

// declaredRole はroleクレームを読み取る。user/admin以外の値はクレーム無しとして扱う。
func declaredRole(c Claims) (user.Role, bool) {
	role, err := user.ParseRole(c.String("role"))
	if err != nil {
		return "", false
	}
	return role, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
