package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/hubgate/internal/auth"
	"github.com/nao1215/hubgate/internal/health"
	"github.com/nao1215/hubgate/internal/user"
	"github.com/nao1215/hubgate/pkg/middleware"
)

// Checker はルート要件に対してリクエストを判定する。*auth.Guardが実装する。
type Checker interface {
	Check(ctx context.Context, req auth.Requirement, h auth.Metadata) (*auth.UserContext, error)
}

// HealthChecker はバックエンドサービスの稼働状態を集約する。*health.Proberが実装する。
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// UserStore は管理用エンドポイントが参照するユーザーストア。*user.Repositoryが実装する。
type UserStore interface {
	List(ctx context.Context) ([]user.User, error)
	GetByExternalID(ctx context.Context, externalID string) (user.User, error)
}

// Options はサーバーの設定。
type Options struct {
	// Port はサーバーのリッスンポート。
	Port string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// RetryAfter はstore_unavailableで返すRetry-Afterの値。
	RetryAfter time.Duration
	// StoreTimeout は管理用エンドポイントでのストア操作のタイムアウト。
	StoreTimeout time.Duration
}

// Route は登録済みルートとそのアクセス要件。
type Route struct {
	Method      string
	Path        string
	Requirement auth.Requirement
}

// Server はゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// opts はサーバーの設定。
	opts Options
	// guard はルートごとのアクセス判定を行う。
	guard Checker
	// health はバックエンドの疎通確認を行う。
	health HealthChecker
	// users はユーザーストア。
	users UserStore
	// logger は構造化ロガー。
	logger *slog.Logger
	// routes は登録済みルートの一覧。
	routes []Route
}

// NewServer は新しいゲートウェイサーバーを生成する。
func NewServer(opts Options, guard Checker, hc HealthChecker, users UserStore, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("service", "gateway"))

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))

	s := &Server{
		router: router,
		opts:   opts,
		guard:  guard,
		health: hc,
		users:  users,
		logger: logger,
	}
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Routes は登録済みルートの一覧を返す。
func (s *Server) Routes() []Route {
	return append([]Route(nil), s.routes...)
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.opts.Port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.handle(http.MethodGet, "/health", auth.Public, s.handleHealth)
	s.handle(http.MethodGet, "/auth/me", auth.Authenticated, s.handleMe)

	s.handle(http.MethodGet, "/api/v1/admin/users", auth.AdminOnly, s.handleListUsers)
	s.handle(http.MethodGet, "/api/v1/admin/users/:external_id", auth.AdminOnly, s.handleGetUser)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// handle はアクセス要件付きでルートを登録する。
// 要件を宣言せずにルートを登録する手段は用意しない。
func (s *Server) handle(method, path string, req auth.Requirement, h gin.HandlerFunc) {
	s.routes = append(s.routes, Route{Method: method, Path: path, Requirement: req})
	s.router.Handle(method, path, s.require(req), h)
}

// require はGuardでリクエストを判定するGinミドルウェアを返す。
// 許可されたユーザーはリクエストのコンテキストに格納して下流へ渡す。
func (s *Server) require(req auth.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, err := s.guard.Check(c.Request.Context(), req, c.Request.Header)
		if err != nil {
			s.abortRejected(c, err)
			return
		}
		if uc != nil {
			c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), *uc))
		}
		c.Next()
	}
}

// abortRejected は拒否理由をHTTPレスポンスに変換して処理を中断する。
func (s *Server) abortRejected(c *gin.Context, err error) {
	kind, ok := auth.KindOf(err)
	if !ok {
		s.logger.ErrorContext(c.Request.Context(), "unexpected guard error", slog.Any("error", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	status, msg := rejection(kind)
	if kind == auth.KindStoreUnavailable {
		c.Header("Retry-After", retryAfterSeconds(s.opts.RetryAfter))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": string(kind)})
}

// rejection は拒否理由に対応するHTTPステータスと汎用メッセージを返す。
func rejection(kind auth.Kind) (int, string) {
	switch kind {
	case auth.KindMissingCredential:
		return http.StatusUnauthorized, "authentication required"
	case auth.KindInvalidCredential:
		return http.StatusUnauthorized, "invalid credential"
	case auth.KindStoreUnavailable:
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	case auth.KindInsufficientRole:
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// retryAfterSeconds はRetry-Afterヘッダーの値を秒単位で返す。最小1秒。
func retryAfterSeconds(d time.Duration) string {
	sec := int(d.Round(time.Second) / time.Second)
	if sec < 1 {
		sec = 1
	}
	return strconv.Itoa(sec)
}

// handleHealth はバックエンドサービスの疎通確認結果を返す。
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.health.Check(c.Request.Context()))
}

// handleMe は認証済みユーザーの情報を返す。
func (s *Server) handleMe(c *gin.Context) {
	uc, ok := auth.UserFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": uc})
}

// handleListUsers は登録済みユーザーの一覧を返す。
func (s *Server) handleListUsers(c *gin.Context) {
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()

	users, err := s.users.List(ctx)
	if err != nil {
		s.storeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// handleGetUser は指定されたユーザーを返す。
func (s *Server) handleGetUser(c *gin.Context) {
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()

	u, err := s.users.GetByExternalID(ctx, c.Param("external_id"))
	if errors.Is(err, user.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		s.storeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (s *Server) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

// storeFailed はストア障害を503として返す。
func (s *Server) storeFailed(c *gin.Context, err error) {
	s.logger.ErrorContext(c.Request.Context(), "user store failed", slog.Any("error", err))
	c.Header("Retry-After", retryAfterSeconds(s.opts.RetryAfter))
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": "service temporarily unavailable",
		"kind":  string(auth.KindStoreUnavailable),
	})
}
