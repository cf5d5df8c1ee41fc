package auth

import "errors"

// Kind は認証・認可パイプラインの拒否理由の種類。
type Kind string

const (
	// KindMissingCredential は非公開ルートに有効なBearerトークンが無いことを表す。
	KindMissingCredential Kind = "missing_credential"
	// KindInvalidCredential はトークン検証に失敗したことを表す。
	// 期限切れ・形式不正・署名不正・subject欠落・プロバイダー到達不能を区別しない。
	KindInvalidCredential Kind = "invalid_credential"
	// KindStoreUnavailable はユーザー照合時の永続化層の失敗を表す。
	KindStoreUnavailable Kind = "store_unavailable"
	// KindInsufficientRole は認証済みだがロール要件を満たさないことを表す。
	KindInsufficientRole Kind = "insufficient_role"
)

// 拒否理由ごとの番兵エラー。errors.Isで比較する。
var (
	ErrMissingCredential = &Error{Kind: KindMissingCredential}
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrInsufficientRole  = &Error{Kind: KindInsufficientRole}
)

// Error はパイプラインがリクエストを拒否したことを表すエラー。
// 原因となった内部エラーはログ用に保持するが、クライアントには返さない。
type Error struct {
	// Kind は拒否理由の種類。
	Kind Kind
	// cause は内部的な原因。
	cause error
}

func reject(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// Error はエラーメッセージを返す。原因が含まれるためログ出力専用。
func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.cause.Error()
}

// Unwrap は内部的な原因を返す。
func (e *Error) Unwrap() error {
	return e.cause
}

// Is はKindが一致する*Errorを同一視する。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable は呼び出し側での再試行に意味があるかを返す。
// 一時的なインフラ障害であるstore_unavailableのみtrue。
func (e *Error) Retryable() bool {
	return e.Kind == KindStoreUnavailable
}

// KindOf はerrに含まれる拒否理由を返す。パイプラインのエラーでなければfalse。
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
