package identity

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	identitydb "github.com/nao1215/socialhub/internal/identity/db"
	"github.com/nao1215/socialhub/pkg/kvstore"
	"github.com/nao1215/socialhub/pkg/middleware"
	"github.com/nao1215/socialhub/pkg/ratelimit"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// refreshTokenTTL はリフレッシュトークンの有効期間。
const refreshTokenTTL = 7 * 24 * time.Hour

// Server はidentityサービスのHTTPサーバー。
// ユーザー登録・ログイン・トークン更新・ログアウトを提供する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *identitydb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はレートリミッタが使用する共有キーバリューストア。
	store kvstore.Store
	// jwtSecret はJWT署名用の共有シークレット。
	jwtSecret string
}

// NewServer は新しいidentityサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/identity.db?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	store, err := kvstore.NewRedis(redisURL)
	if err != nil {
		return nil, fmt.Errorf("キーバリューストア接続に失敗: %w", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		port:      port,
		queries:   identitydb.New(sqlDB),
		db:        sqlDB,
		store:     store,
		jwtSecret: jwtSecret,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 全ルートにバースト抑制のトークンバケットを適用し、
// 登録エンドポイントにはさらに厳しい固定ウィンドウ制限を重ねる。
func (s *Server) setupRoutes() {
	burstLimiter := ratelimit.NewTokenBucket(s.store, 10, time.Second, "rl:identity")
	registerLimiter := ratelimit.NewFixedWindow(s.store, 50, 15*time.Minute, "rl:register")

	auth := s.router.Group("/api/auth")
	auth.Use(middleware.RateLimit(burstLimiter))
	{
		// ユーザー登録
		auth.POST("/register", middleware.RateLimit(registerLimiter), s.handleRegister())
		// ログイン
		auth.POST("/login", s.handleLogin())
		// トークン更新
		auth.POST("/refresh-token", s.handleRefreshToken())
		// ログアウト
		auth.POST("/logout", s.handleLogout())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "identity"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Username はユーザー名。
	Username string `json:"username" binding:"required,min=3"`
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password は平文パスワード。保存前にbcryptでハッシュ化される。
	Password string `json:"password" binding:"required,min=6"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password は平文パスワード。
	Password string `json:"password" binding:"required"`
}

// refreshTokenRequest はトークン更新・ログアウトリクエストのJSON構造。
type refreshTokenRequest struct {
	// RefreshToken はリフレッシュトークン文字列。
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// tokenResponse はトークン発行のJSONレスポンス構造。
type tokenResponse struct {
	// AccessToken はJWTアクセストークン。
	AccessToken string `json:"accessToken"`
	// RefreshToken はリフレッシュトークン。
	RefreshToken string `json:"refreshToken"`
	// UserID はユーザーの一意識別子。
	UserID string `json:"userId,omitempty"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// メールアドレスまたはユーザー名が既に使われている場合は400を返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		count, err := s.queries.CountUsersByEmailOrUsername(c.Request.Context(), identitydb.CountUsersByEmailOrUsernameParams{
			Email:    req.Email,
			Username: req.Username,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの確認に失敗しました"})
			log.Printf("ユーザー重複チェックエラー: %v", err)
			return
		}
		if count > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザーは既に存在します"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの処理に失敗しました"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		userID := uuid.New().String()
		if err := s.queries.CreateUser(c.Request.Context(), identitydb.CreateUserParams{
			ID:           userID,
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの登録に失敗しました"})
			log.Printf("ユーザー登録エラー: %v", err)
			return
		}

		accessToken, refreshToken, err := s.issueTokens(c, userID, req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			UserID:       userID,
		})
	}
}

// handleLogin はログインを処理するハンドラを返す。
// ユーザーが存在しない場合とパスワード不一致の場合で応答を区別しない。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		user, err := s.queries.GetUserByEmail(c.Request.Context(), req.Email)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"error": "認証情報が無効です"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "認証情報が無効です"})
			return
		}

		accessToken, refreshToken, err := s.issueTokens(c, user.ID, user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			UserID:       user.ID,
		})
	}
}

// handleRefreshToken はトークン更新を処理するハンドラを返す。
// 有効なリフレッシュトークンを新しいペアに交換し、古いトークンを失効させる。
func (s *Server) handleRefreshToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リフレッシュトークンが必要です"})
			return
		}

		stored, err := s.queries.GetRefreshToken(c.Request.Context(), req.RefreshToken)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンが無効または期限切れです", "code": middleware.CodeInvalidCredential})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの取得に失敗しました"})
			log.Printf("リフレッシュトークン取得エラー: %v", err)
			return
		}

		if stored.ExpiresAt.Before(time.Now()) {
			// 期限切れトークンは掃除してから拒否する
			if err := s.queries.DeleteRefreshToken(c.Request.Context(), stored.Token); err != nil {
				log.Printf("期限切れトークン削除エラー: %v", err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンが無効または期限切れです", "code": middleware.CodeInvalidCredential})
			return
		}

		user, err := s.queries.GetUserByID(c.Request.Context(), stored.UserID)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーが見つかりません", "code": middleware.CodeInvalidCredential})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		accessToken, refreshToken, err := s.issueTokens(c, user.ID, user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		// ローテーション: 古いリフレッシュトークンを失効させる
		if err := s.queries.DeleteRefreshToken(c.Request.Context(), stored.Token); err != nil {
			log.Printf("旧リフレッシュトークン削除エラー: %v", err)
		}

		c.JSON(http.StatusOK, tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		})
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// リフレッシュトークンを失効させる。アクセストークンは有効期限まで生きる。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リフレッシュトークンが必要です"})
			return
		}

		if err := s.queries.DeleteRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログアウトに失敗しました"})
			log.Printf("リフレッシュトークン削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "ログアウトしました"})
	}
}

// issueTokens はアクセストークンとリフレッシュトークンのペアを発行する。
// リフレッシュトークンはランダムな40バイトの16進文字列で、DBに保存される。
func (s *Server) issueTokens(c *gin.Context, userID, email string) (string, string, error) {
	accessToken, err := middleware.GenerateJWT(s.jwtSecret, userID, email)
	if err != nil {
		return "", "", fmt.Errorf("アクセストークンの生成に失敗: %w", err)
	}

	raw := make([]byte, 40)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("リフレッシュトークンの生成に失敗: %w", err)
	}
	refreshToken := hex.EncodeToString(raw)

	if err := s.queries.CreateRefreshToken(c.Request.Context(), identitydb.CreateRefreshTokenParams{
		Token:     refreshToken,
		UserID:    userID,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}); err != nil {
		return "", "", fmt.Errorf("リフレッシュトークンの保存に失敗: %w", err)
	}

	return accessToken, refreshToken, nil
}
