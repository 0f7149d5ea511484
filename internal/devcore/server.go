package devcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/nao1215/nexia-bff/pkg/config"
	"github.com/nao1215/nexia-bff/pkg/event"
	"github.com/nao1215/nexia-bff/pkg/middleware"
)

// Server は開発用コアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はrouterを公開するHTTPサーバー。
	httpServer *http.Server
	// db はSQLiteデータベース接続。
	db *sql.DB
	// users はユーザーとイベントの保存先。
	users *store
	// tokens はアクセストークンの発行・検証を行う。
	tokens *middleware.TokenIssuer
	// bcryptCost はパスワードハッシュのコスト。
	bcryptCost int
	// logger は構造化ログの出力先。
	logger zerolog.Logger
}

// registerRequest はユーザー登録のリクエストボディ。
type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

// loginRequest はログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	AccessToken      string `json:"accessToken"`
	TokenType        string `json:"tokenType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// userResponse は現在ユーザーのレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewServer は新しい開発用コアサービスを生成する。
func NewServer(ctx context.Context, cfg config.DevCore, logger zerolog.Logger) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	// SQLiteへの書き込みを直列化する
	sqlDB.SetMaxOpenConns(1)

	s, err := newServer(ctx, sqlDB, middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL), bcrypt.DefaultCost, logger)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	s.httpServer.Addr = cfg.Addr()
	return s, nil
}

// newServer は依存を受け取ってサーバーを組み立てる。テストからも使用する。
func newServer(ctx context.Context, db *sql.DB, tokens *middleware.TokenIssuer, cost int, logger zerolog.Logger) (*Server, error) {
	if err := initSchema(ctx, db, logger); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	// パニックしたリクエストも記録するためRecoveryより外側に置く
	router.Use(middleware.AccessLog(logger, nil))
	router.Use(middleware.Recovery(logger, func(_ any) any {
		return newProblem(http.StatusInternalServerError, "", "")
	}))

	s := &Server{
		router:     router,
		db:         db,
		users:      &store{db: db},
		tokens:     tokens,
		bcryptCost: cost,
		logger:     logger.With().Str("component", "devcore").Logger(),
	}
	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown はサーバーを停止し、データベース接続を閉じる。
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.db.Close())
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証（認証不要）
	auth := s.router.Group("/api/auth")
	{
		auth.POST("/register", s.handleRegister())
		auth.POST("/login", s.handleLogin())
	}

	// 認証必須
	api := s.router.Group("/api/v1")
	api.Use(middleware.BearerAuth(s.tokens, func(reason string) any {
		return newProblem(http.StatusUnauthorized, "", reason)
	}))
	{
		api.GET("/users/me", s.handleMe())
	}

	// 開発用: アウトボックスの確認
	s.router.GET("/api/dev/events", s.handleListEvents())

	// ヘルスチェック
	s.router.GET("/actuator/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}

// handleRegister はユーザー登録のハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeProblem(c, http.StatusBadRequest, "validation", "Request validation failed")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		req.FullName = strings.TrimSpace(req.FullName)
		if detail := validateRegister(req); detail != "" {
			writeProblem(c, http.StatusBadRequest, "validation", detail)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if err != nil {
			s.internalError(c, "パスワードのハッシュ化に失敗", err)
			return
		}

		user := User{
			ID:           uuid.New().String(),
			Email:        req.Email,
			FullName:     req.FullName,
			PasswordHash: string(hash),
			Role:         roleUser,
			CreatedAt:    time.Now().UTC(),
		}
		ev, err := event.UserRegistered(user.ID, user.Email)
		if err != nil {
			s.internalError(c, "イベント生成に失敗", err)
			return
		}

		if err := s.users.createUser(c.Request.Context(), user, ev); err != nil {
			if errors.Is(err, ErrEmailExists) {
				writeProblem(c, http.StatusConflict, "conflict", ErrEmailExists.Error())
				return
			}
			s.internalError(c, "ユーザー登録に失敗", err)
			return
		}

		s.logger.Info().
			Str("user_id", user.ID).
			Str("event_id", ev.ID).
			Msg("ユーザーを登録しました")
		s.respondWithToken(c, http.StatusCreated, user)
	}
}

// handleLogin はログインのハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeProblem(c, http.StatusBadRequest, "validation", "Request validation failed")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || strings.TrimSpace(req.Password) == "" {
			writeProblem(c, http.StatusBadRequest, "validation", "email: must not be blank; password: must not be blank")
			return
		}

		user, err := s.users.findByEmail(c.Request.Context(), req.Email)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			s.internalError(c, "ユーザー取得に失敗", err)
			return
		}
		// 存在しないユーザーとパスワード不一致を区別しない
		if err != nil || user.PasswordHash == "" ||
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			writeProblem(c, http.StatusUnauthorized, "", "invalid credentials")
			return
		}

		s.respondWithToken(c, http.StatusOK, user)
	}
}

// handleMe はトークンのメールアドレスに対応するユーザーを返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if claims == nil {
			writeProblem(c, http.StatusUnauthorized, "", "")
			return
		}

		user, err := s.users.findByEmail(c.Request.Context(), strings.TrimSpace(claims.Email))
		if errors.Is(err, ErrUserNotFound) {
			writeProblem(c, http.StatusNotFound, "not-found", ErrUserNotFound.Error())
			return
		}
		if err != nil {
			s.internalError(c, "ユーザー取得に失敗", err)
			return
		}

		c.JSON(http.StatusOK, userResponse{
			ID:        user.ID,
			Email:     user.Email,
			FullName:  user.FullName,
			CreatedAt: user.CreatedAt,
		})
	}
}

// handleListEvents はアウトボックスに記録されたイベントを返すハンドラを返す。
func (s *Server) handleListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := s.users.listEvents(c.Request.Context())
		if err != nil {
			s.internalError(c, "イベント取得に失敗", err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

// respondWithToken はユーザーのアクセストークンを発行して返す。
func (s *Server) respondWithToken(c *gin.Context, status int, user User) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		s.internalError(c, "トークン生成に失敗", err)
		return
	}
	c.JSON(status, authResponse{
		AccessToken:      token,
		TokenType:        "Bearer",
		ExpiresInSeconds: s.tokens.TTLSeconds(),
	})
}

// internalError はエラーをログに出力して500を返す。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	_ = c.Error(err)
	s.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(c)).
		Msg(msg)
	writeProblem(c, http.StatusInternalServerError, "", "")
}

// validateRegister は登録リクエストを検証し、問題があれば詳細メッセージを返す。
func validateRegister(req registerRequest) string {
	var details []string
	if req.Email == "" || !strings.Contains(req.Email, "@") ||
		strings.HasPrefix(req.Email, "@") || strings.HasSuffix(req.Email, "@") {
		details = append(details, "email: must be a well-formed email address")
	}
	if n := utf8.RuneCountInString(req.FullName); n < 2 || n > 255 {
		details = append(details, "fullName: size must be between 2 and 255")
	}
	if n := utf8.RuneCountInString(req.Password); strings.TrimSpace(req.Password) == "" || n < 8 || n > 100 {
		details = append(details, "password: size must be between 8 and 100")
	}
	return strings.Join(details, "; ")
}
