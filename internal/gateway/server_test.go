package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/hubgate/internal/auth"
	"github.com/nao1215/hubgate/internal/health"
	"github.com/nao1215/hubgate/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenTable はトークン文字列ごとにクレームを返すテスト用オラクル。
type tokenTable map[string]auth.Claims

func (tt tokenTable) VerifyToken(_ context.Context, token string) (auth.Claims, error) {
	c, ok := tt[token]
	if !ok {
		return nil, errors.New("signature is invalid")
	}
	return c, nil
}

// emptyDirectory は空のプロフィールを返すテスト用ディレクトリ。
type emptyDirectory struct{}

func (emptyDirectory) GetUser(context.Context, string) (*auth.Profile, error) {
	return &auth.Profile{}, nil
}

// fixedHealth は固定のレポートを返すテスト用HealthChecker。
type fixedHealth health.Report

func (f fixedHealth) Check(context.Context) health.Report {
	return health.Report(f)
}

// testEnv はテスト用サーバーとその依存。
type testEnv struct {
	server *Server
	repo   *user.Repository
}

var testTokens = tokenTable{
	"alice": {"sub": "user_alice", "email": "alice@example.com", "name": "Alice"},
	"bob":   {"sub": "user_bob", "email": "bob@example.com", "name": "Bob", "role": "admin"},
}

// newTestEnv はインメモリSQLiteと実際のGuardを使うテスト用サーバーを生成する。
func newTestEnv(t *testing.T, report health.Report) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := user.Open(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	guard := auth.NewGuard(
		auth.NewVerifier(testTokens, emptyDirectory{}, time.Second),
		auth.NewReconciler(repo, time.Second),
		logger,
	)
	s := NewServer(Options{
		Port:           "0",
		AllowedOrigins: []string{"http://localhost:3000"},
		RetryAfter:     5 * time.Second,
		StoreTimeout:   time.Second,
	}, guard, fixedHealth(report), repo, logger)

	return &testEnv{server: s, repo: repo}
}

// do はリクエストを送信してレスポンスを返す。tokenが空ならAuthorizationを付けない。
func (e *testEnv) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

// decode はレスポンスボディをmapにパースする。
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, health.Report{})
	want := map[string]auth.Requirement{
		"GET /health":                          auth.Public,
		"GET /auth/me":                         auth.Authenticated,
		"GET /api/v1/admin/users":              auth.AdminOnly,
		"GET /api/v1/admin/users/:external_id": auth.AdminOnly,
	}

	routes := env.server.Routes()
	if len(routes) != len(want) {
		t.Fatalf("ルート数 = %d, want %d", len(routes), len(want))
	}
	for _, r := range routes {
		req, ok := want[r.Method+" "+r.Path]
		if !ok {
			t.Errorf("想定外のルート: %s %s", r.Method, r.Path)
			continue
		}
		if r.Requirement != req {
			t.Errorf("%s %s の要件 = %s, want %s", r.Method, r.Path, r.Requirement, req)
		}
	}
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	report := health.Report{
		OK:      false,
		Gateway: health.GatewayStatus{Service: "gateway", Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Services: map[string]health.ServiceStatus{
			"catalog": {OK: true, Service: "catalog"},
			"media":   {OK: false, Service: "media", Error: "timeout"},
		},
	}
	env := newTestEnv(t, report)

	t.Run("資格情報なしで集約結果を返すこと", func(t *testing.T) {
		t.Parallel()

		w := env.do(t, http.MethodGet, "/health", "")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		body := decode(t, w)
		if body["ok"] != false {
			t.Errorf("ok = %v, want false", body["ok"])
		}
		services, _ := body["services"].(map[string]any)
		media, _ := services["media"].(map[string]any)
		if media["error"] != "timeout" {
			t.Errorf("services.media = %v", media)
		}
	})

	t.Run("不正なトークンがあっても公開ルートは拒否しないこと", func(t *testing.T) {
		t.Parallel()

		if w := env.do(t, http.MethodGet, "/health", "garbage"); w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestServer_Me(t *testing.T) {
	t.Parallel()

	t.Run("認証済みユーザーを返し、初回アクセスでレコードが作成されること", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, health.Report{})
		w := env.do(t, http.MethodGet, "/auth/me", "alice")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
		}

		var body struct {
			User auth.UserContext `json:"user"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		want := auth.UserContext{ExternalID: "user_alice", Email: "alice@example.com", DisplayName: "Alice", Role: user.RoleUser}
		if body.User != want {
			t.Errorf("user = %+v, want %+v", body.User, want)
		}

		if _, err := env.repo.GetByExternalID(context.Background(), "user_alice"); err != nil {
			t.Errorf("ユーザーレコードが作成されていない: %v", err)
		}
	})

	t.Run("トークン上のadminロールは永続化ロールで上書きされること", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, health.Report{})
		w := env.do(t, http.MethodGet, "/auth/me", "bob")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		body := decode(t, w)
		u, _ := body["user"].(map[string]any)
		if u["role"] != "user" {
			t.Errorf("role = %v, want user", u["role"])
		}
	})
}

func TestServer_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantKind   string
	}{
		{name: "資格情報なし", path: "/auth/me", wantStatus: http.StatusUnauthorized, wantKind: "missing_credential"},
		{name: "不正なトークン", path: "/auth/me", token: "garbage", wantStatus: http.StatusUnauthorized, wantKind: "invalid_credential"},
		{name: "管理APIに資格情報なし", path: "/api/v1/admin/users", wantStatus: http.StatusUnauthorized, wantKind: "missing_credential"},
		{name: "一般ユーザーの管理API", path: "/api/v1/admin/users", token: "alice", wantStatus: http.StatusForbidden, wantKind: "insufficient_role"},
		{name: "偽造adminの管理API", path: "/api/v1/admin/users/user_bob", token: "bob", wantStatus: http.StatusForbidden, wantKind: "insufficient_role"},
	}

	env := newTestEnv(t, health.Report{})
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := env.do(t, http.MethodGet, tt.path, tt.token)
			if w.Code != tt.wantStatus {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decode(t, w)
			if body["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %q", body["kind"], tt.wantKind)
			}
			if msg, _ := body["error"].(string); msg == "" || msg == "signature is invalid" {
				t.Errorf("error = %q, 汎用メッセージを期待", msg)
			}
		})
	}

	t.Run("ストア障害は503とRetry-Afterになること", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, health.Report{})
		_ = env.repo.Close()

		w := env.do(t, http.MethodGet, "/auth/me", "alice")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
		if got := w.Header().Get("Retry-After"); got != "5" {
			t.Errorf("Retry-After = %q, want %q", got, "5")
		}
		if body := decode(t, w); body["kind"] != "store_unavailable" {
			t.Errorf("kind = %v, want store_unavailable", body["kind"])
		}
	})
}

func TestServer_AdminUsers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, health.Report{})

	// 初回アクセスで作成された後、管理CLI相当の操作で昇格する
	if w := env.do(t, http.MethodGet, "/auth/me", "bob"); w.Code != http.StatusOK {
		t.Fatalf("初回アクセスのステータスコード = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/auth/me", "alice"); w.Code != http.StatusOK {
		t.Fatalf("初回アクセスのステータスコード = %d", w.Code)
	}
	if _, err := env.repo.SetRole(context.Background(), "user_bob", user.RoleAdmin); err != nil {
		t.Fatalf("SetRole()でエラーが発生: %v", err)
	}

	t.Run("昇格後はユーザー一覧を取得できること", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/admin/users", "bob")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
		}
		body := decode(t, w)
		if body["count"] != float64(2) {
			t.Errorf("count = %v, want 2", body["count"])
		}
	})

	t.Run("個別のユーザーを取得できること", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/admin/users/user_alice", "bob")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body struct {
			User user.User `json:"user"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body.User.Email != "alice@example.com" || body.User.Role != user.RoleUser {
			t.Errorf("user = %+v", body.User)
		}
	})

	t.Run("存在しないユーザーは404になること", func(t *testing.T) {
		if w := env.do(t, http.MethodGet, "/api/v1/admin/users/nobody", "bob"); w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, health.Report{})
	if w := env.do(t, http.MethodGet, "/api/v1/unknown", ""); w.Code != http.StatusNotFound {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "1"},
		{in: 300 * time.Millisecond, want: "1"},
		{in: 5 * time.Second, want: "5"},
		{in: 90 * time.Second, want: "90"},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
