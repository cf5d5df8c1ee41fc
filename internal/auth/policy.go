package auth

import "github.com/nao1215/hubgate/internal/user"

// Requirement はルートごとに静的に宣言される公開範囲。
type Requirement int

const (
	// Public は認証不要のルート。
	Public Requirement = iota
	// Authenticated は認証済みユーザーのみ許可するルート。
	Authenticated
	// AdminOnly は管理者のみ許可するルート。
	AdminOnly
)

// String は要件名を返す。
func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case AdminOnly:
		return "admin_only"
	default:
		return "unknown"
	}
}

// Decision はAccessPolicyの判定結果。
type Decision struct {
	// Allowed はリクエストを通すかどうか。
	Allowed bool
	// Reason は拒否理由。許可時は空。
	Reason string
}

// Authorize はルート要件とユーザーコンテキストからアクセス可否を判定する。
// 未知の要件は拒否する。
func Authorize(req Requirement, uc *UserContext) Decision {
	switch req {
	case Public:
		return Decision{Allowed: true}
	case Authenticated:
		if uc == nil {
			return Decision{Reason: "unauthenticated"}
		}
		return Decision{Allowed: true}
	case AdminOnly:
		if uc == nil || uc.Role != user.RoleAdmin {
			return Decision{Reason: "insufficient role"}
		}
		return Decision{Allowed: true}
	default:
		return Decision{Reason: "unknown requirement"}
	}
}
