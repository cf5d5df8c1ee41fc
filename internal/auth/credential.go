package auth

import "strings"

// Metadata はリクエストヘッダー相当のキー・値を大文字小文字を区別せずに参照する。
// http.Headerはこのインターフェースを満たす。
type Metadata interface {
	Get(key string) string
}

// ExtractBearer はAuthorizationヘッダーからBearerトークンを取り出す。
// "Bearer <token>" 形式以外、またはトリム後に空の場合は("", false)を返す。
func ExtractBearer(h Metadata) (string, bool) {
	if h == nil {
		return "", false
	}
	authorization := h.Get("Authorization")
	if authorization == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(authorization, " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
