package gateway

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/socialhub/pkg/kvstore"
	"github.com/nao1215/socialhub/pkg/middleware"
	"github.com/nao1215/socialhub/pkg/ratelimit"
)

// proxyRoute はパスプレフィックスと転送先サービスの対応を表す。
type proxyRoute struct {
	// prefix はクライアントから見たパスプレフィックス。
	prefix string
	// target は転送先サービスのベースURL。
	target string
	// requireAuth は認証ゲートを通すかどうか。
	requireAuth bool
	// opaqueBody はボディを解釈せずそのまま転送するかどうか。
	// メディアアップロードのmultipartボディをバイト列のまま通すために使う。
	opaqueBody bool
}

// Server はAPIゲートウェイのHTTPサーバー。
// 受信リクエストをレート制限と認証ゲートに通し、パスプレフィックスに
// 応じた内部サービスへ転送する。ゲートウェイ自身は状態を持たない。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// jwtSecret はJWT検証用の共有シークレット。
	jwtSecret string
	// routes はプレフィックスから転送先へのルート表。
	routes []proxyRoute
	// client は内部サービスへの転送に使うHTTPクライアント。
	client *http.Client
}

// NewServer は新しいゲートウェイサーバーを生成する。
// レート制限の共有ストアに接続し、ルート表を構築する。
func NewServer(port string) (*Server, error) {
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

	routes := []proxyRoute{
		// 認証エンドポイントは資格情報を持たないクライアントが使う
		{prefix: "/v1/auth", target: getEnvOr("IDENTITY_SERVICE_URL", "http://localhost:3001"), requireAuth: false},
		{prefix: "/v1/posts", target: getEnvOr("POST_SERVICE_URL", "http://localhost:3002"), requireAuth: true},
		{prefix: "/v1/media", target: getEnvOr("MEDIA_SERVICE_URL", "http://localhost:3003"), requireAuth: true, opaqueBody: true},
		{prefix: "/v1/search", target: getEnvOr("SEARCH_SERVICE_URL", "http://localhost:3004"), requireAuth: true},
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))
	// レート制限は認証検証より先に評価する
	router.Use(middleware.RateLimit(ratelimit.NewFixedWindow(store, 100, 15*time.Minute, "rl:gateway")))

	s := &Server{
		router:    router,
		port:      port,
		jwtSecret: jwtSecret,
		routes:    routes,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はルート表からAPIルーティングを設定する。
// 各プレフィックスの配下は全メソッド・全サブパスを転送する。
func (s *Server) setupRoutes() {
	for _, route := range s.routes {
		group := s.router.Group(route.prefix)
		if route.requireAuth {
			group.Use(middleware.JWTAuth(s.jwtSecret))
		}

		handler := s.handleProxy(route)
		group.Any("", handler)
		group.Any("/*proxyPath", handler)
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
