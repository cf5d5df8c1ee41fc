package auth

import (
	"context"

	"github.com/nao1215/hubgate/internal/user"
)

// UserContext は下流のハンドラーに渡される認証済みユーザー情報。
// Roleは常に永続化されたロールであり、トークン上のロールではない。
type UserContext struct {
	ExternalID  string    `json:"external_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        user.Role `json:"role"`
}

// contextKey はコンテキストキーの型。
type contextKey struct{}

// WithUser はユーザーコンテキストを格納した新しいコンテキストを返す。
func WithUser(ctx context.Context, uc UserContext) context.Context {
	return context.WithValue(ctx, contextKey{}, uc)
}

// UserFromContext はコンテキストからユーザーコンテキストを取り出す。
// 公開ルートなどで格納されていない場合はfalseを返す。
func UserFromContext(ctx context.Context) (UserContext, bool) {
	uc, ok := ctx.Value(contextKey{}).(UserContext)
	return uc, ok
}
