package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/hubgate/pkg/message"
	"github.com/nao1215/hubgate/pkg/middleware"
)

// errUnknownPattern は登録されていないパターンを受け取ったことを表す。
var errUnknownPattern = errors.New("未対応のパターンです")

// HandlerFunc はパターンごとのメッセージ処理関数。
// 戻り値は応答データとしてJSONにシリアライズされる。
type HandlerFunc func(ctx context.Context, env *message.Envelope) (any, error)

// Server はバックエンドワーカーのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service はサービス名。
	service string
	// handlers はパターンごとの処理関数。
	handlers map[message.Pattern]HandlerFunc
	// logger は構造化ロガー。
	logger *slog.Logger
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewServer は新しいワーカーサーバーを生成する。
// service.pingのハンドラは常に登録される。
func NewServer(service, port string, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("service", service))

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))

	s := &Server{
		router:   router,
		port:     port,
		service:  service,
		handlers: make(map[message.Pattern]HandlerFunc),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.Handle(message.PatternPing, s.handlePing)
	s.setupRoutes()

	return s
}

// Handle はパターンに対する処理関数を登録する。
func (s *Server) Handle(pattern message.Pattern, h HandlerFunc) {
	s.handlers[pattern] = h
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.POST("/rpc", s.handleRPC)
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.service})
	})
}

// handleRPC はEnvelopeを受け取り、パターンに対応する処理関数へ振り分ける。
// 処理の失敗は200のReply(ok=false)として返し、HTTPエラーはリクエスト形式の不正に限る。
func (s *Server) handleRPC(c *gin.Context) {
	var env message.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が不正です"})
		return
	}

	h, ok := s.handlers[env.Pattern]
	if !ok {
		s.logger.WarnContext(c.Request.Context(), "unknown pattern", slog.String("pattern", string(env.Pattern)))
		c.JSON(http.StatusOK, message.ErrorReply(env.ID, fmt.Errorf("%w: %s", errUnknownPattern, env.Pattern)))
		return
	}

	data, err := h(c.Request.Context(), &env)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "rpc handler failed",
			slog.String("pattern", string(env.Pattern)), slog.Any("error", err))
		c.JSON(http.StatusOK, message.ErrorReply(env.ID, err))
		return
	}

	reply, err := message.NewReply(env.ID, data)
	if err != nil {
		c.JSON(http.StatusOK, message.ErrorReply(env.ID, err))
		return
	}
	c.JSON(http.StatusOK, reply)
}

// handlePing はservice.pingに応答する。
func (s *Server) handlePing(_ context.Context, env *message.Envelope) (any, error) {
	req, err := message.DecodeData[message.PingRequest](env)
	if err != nil {
		return nil, err
	}
	return message.PingReply{
		Service:    s.service,
		From:       req.From,
		ReceivedAt: s.now(),
	}, nil
}
