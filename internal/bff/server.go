package bff

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/nexia-bff/pkg/config"
	"github.com/nao1215/nexia-bff/pkg/httpclient"
	"github.com/nao1215/nexia-bff/pkg/metrics"
	"github.com/nao1215/nexia-bff/pkg/middleware"
)

// コアサービス側のエンドポイント。
const (
	corePathRegister = "/api/auth/register"
	corePathLogin    = "/api/auth/login"
	corePathMe       = "/api/v1/users/me"
)

// Server はBFFサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はrouterを公開するHTTPサーバー。
	httpServer *http.Server
	// cfg は起動時に読み込んだ設定。生成後は変更しない。
	cfg config.Config
	// core はコアサービスのクライアント。
	core *httpclient.Client
	// metrics はリクエストと上流呼び出しの計測値。
	metrics *metrics.Metrics
	// logger は構造化ログの出力先。
	logger zerolog.Logger
}

// NewServer は新しいBFFサーバーを生成する。
func NewServer(cfg config.Config, logger zerolog.Logger) *Server {
	m := metrics.New("bff")
	core := httpclient.New(cfg.CoreURL,
		httpclient.WithTimeout(cfg.UpstreamTimeout),
		httpclient.WithObserver(func(call httpclient.Call) {
			outcome := "error"
			if call.StatusCode != 0 {
				outcome = strconv.Itoa(call.StatusCode)
			}
			m.ObserveUpstream(call.Method, call.Path, outcome, call.Duration)
		}),
	)
	return newServer(cfg, logger, core, m)
}

// newServer は依存を受け取ってサーバーを組み立てる。テストからも使用する。
func newServer(cfg config.Config, logger zerolog.Logger, core *httpclient.Client, m *metrics.Metrics) *Server {
	router := gin.New()
	router.Use(middleware.RequestID())
	// パニックしたリクエストも記録するためRecoveryより外側に置く
	router.Use(middleware.AccessLog(logger, m))
	router.Use(middleware.Recovery(logger, func(_ any) any {
		return errorEnvelope{Message: messageBFFError, Detail: "internal_error"}
	}))
	router.Use(middleware.CORS(cfg.FrontendOrigins))

	s := &Server{
		router:  router,
		cfg:     cfg,
		core:    core,
		metrics: m,
		logger:  logger.With().Str("component", "bff").Logger(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。Shutdown後は http.ErrServerClosed を返す。
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown は処理中のリクエストの完了を待ってサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	bff := s.router.Group("/bff")
	{
		// ヘルスチェック
		bff.GET("/health", s.handleHealth())

		// 認証（そのまま転送）
		auth := bff.Group("/auth")
		auth.POST("/register", s.handlePassthroughPost(corePathRegister))
		auth.POST("/login", s.handlePassthroughPost(corePathLogin))
		// ログイン + 現在ユーザー取得の合成
		auth.POST("/login-and-me", s.handleLoginAndMe())

		// 現在ユーザー（Authorizationヘッダーをそのまま転送）
		bff.GET("/users/me", s.handleCurrentUser())
	}

	if s.cfg.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorEnvelope{Message: messageNotFound})
	})
}

// handleHealth はヘルスチェックのハンドラを返す。コアサービスには問い合わせない。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.ServiceName})
	}
}
