// Package user はゲートウェイが所有するユーザーレコードを管理する。
//
// 外部IDプロバイダーのユーザーIDをキーにしたローカルユーザーを保持し、
// 認可判定に使うロールの唯一の正とする。ロールの昇格はリクエスト経路では行わず、
// 管理者による明示的な操作（gatewayctl）でのみ変更される。
package user

import (
	"fmt"
	"time"
)

// Role はユーザーのロールを表す。
type Role string

const (
	// RoleUser は一般ユーザー。新規作成時は常にこのロールになる。
	RoleUser Role = "user"
	// RoleAdmin は管理者ユーザー。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。user/admin以外はエラーを返す。
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("不明なロール: %q", s)
	}
}

// User はゲートウェイが永続化するユーザーレコード。
type User struct {
	// ExternalID は外部IDプロバイダーのユーザーID。一意キー。
	ExternalID string `json:"external_id"`
	// Email はユーザーのメールアドレス。空の場合がある。
	Email string `json:"email"`
	// DisplayName はユーザーの表示名。空の場合がある。
	DisplayName string `json:"display_name"`
	// Role は永続化されたロール。認可判定はこの値のみを参照する。
	Role Role `json:"role"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile はリクエストから得られたプロフィール情報。
// ロールは含まない。
type Profile struct {
	ExternalID  string
	Email       string
	DisplayName string
}
