package gateway

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/socialhub/pkg/kvstore"
	"github.com/nao1215/socialhub/pkg/middleware"
	"github.com/nao1215/socialhub/pkg/ratelimit"
)

const testSecret = "test-secret-key"

func init() {
	gin.SetMode(gin.TestMode)
}

// upstreamRecorder は内部サービスのスタブが受け取ったリクエストを記録する。
type upstreamRecorder struct {
	// mu は記録フィールドへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// calls は受け取ったリクエスト数。
	calls int
	// lastMethod は最後のリクエストのメソッド。
	lastMethod string
	// lastPath は最後のリクエストのパス（クエリ付き）。
	lastPath string
	// lastUserID は最後のリクエストのX-User-IDヘッダー。
	lastUserID string
	// lastContentType は最後のリクエストのContent-Typeヘッダー。
	lastContentType string
	// lastBody は最後のリクエストのボディ。
	lastBody []byte
}

// newUpstream は受信リクエストを記録する内部サービスのスタブを起動する。
func newUpstream(t *testing.T, recorder *upstreamRecorder) *httptest.Server {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		recorder.mu.Lock()
		recorder.calls++
		recorder.lastMethod = r.Method
		recorder.lastPath = r.URL.RequestURI()
		recorder.lastUserID = r.Header.Get("X-User-ID")
		recorder.lastContentType = r.Header.Get("Content-Type")
		recorder.lastBody = body
		recorder.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"upstream":"ok"}`))
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

// setupTestServer はテスト用のゲートウェイを構築する。
// 全ルートの転送先をupstreamURLに向け、インメモリストアでレート制限する。
func setupTestServer(t *testing.T, upstreamURL string, limit int64) *gin.Engine {
	t.Helper()

	router := gin.New()
	router.Use(middleware.RateLimit(ratelimit.NewFixedWindow(kvstore.NewMemory(), limit, 15*time.Minute, "rl:gateway")))

	s := &Server{
		router:    router,
		port:      "0",
		jwtSecret: testSecret,
		routes: []proxyRoute{
			{prefix: "/v1/auth", target: upstreamURL, requireAuth: false},
			{prefix: "/v1/posts", target: upstreamURL, requireAuth: true},
			{prefix: "/v1/media", target: upstreamURL, requireAuth: true, opaqueBody: true},
			{prefix: "/v1/search", target: upstreamURL, requireAuth: true},
		},
		client: &http.Client{Timeout: 5 * time.Second},
	}
	s.setupRoutes()

	return router
}

// authHeader はテスト用ユーザーのベアラートークンヘッダー値を返す。
func authHeader(t *testing.T, userID string) string {
	t.Helper()

	token, err := middleware.GenerateJWT(testSecret, userID, "test@example.com")
	if err != nil {
		t.Fatalf("テスト用トークンの生成に失敗: %v", err)
	}
	return "Bearer " + token
}

func TestHandleProxy(t *testing.T) {
	t.Parallel()

	t.Run("正常系_パスが書き換えられてユーザーIDと共に転送されること", func(t *testing.T) {
		t.Parallel()

		recorder := &upstreamRecorder{}
		router := setupTestServer(t, newUpstream(t, recorder).URL, 100)

		req := httptest.NewRequest(http.MethodGet, "/v1/posts?page=2&limit=5", nil)
		req.Header.Set("Authorization", authHeader(t, "user-1"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("期待するステータスコード %d, 実際のステータスコード %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "upstream") {
			t.Errorf("上流の応答が転送されていません: %s", w.Body.String())
		}
		if recorder.lastPath != "/api/posts?page=2&limit=5" {
			t.Errorf("期待するパス %q, 実際のパス %q", "/api/posts?page=2&limit=5", recorder.lastPath)
		}
		if recorder.lastUserID != "user-1" {
			t.Errorf("期待するX-User-ID %q, 実際のX-User-ID %q", "user-1", recorder.lastUserID)
		}
	})

	t.Run("正常系_クライアントが偽装したX-User-IDは破棄されること", func(t *testing.T) {
		t.Parallel()

		recorder := &upstreamRecorder{}
		router := setupTestServer(t, newUpstream(t, recorder).URL, 100)

		req := httptest.NewRequest(http.MethodGet, "/v1/posts", nil)
		req.Header.Set("Authorization", authHeader(t, "user-1"))
		req.Header.Set("X-User-ID", "attacker")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusOK, w.Code)
		}
		if recorder.lastUserID != "user-1" {
			t.Errorf("期待するX-User-ID %q, 実際のX-User-ID %q", "user-1", recorder.lastUserID)
		}
	})

	t.Run("正常系_認証不要ルートは資格情報なしで転送されユーザーIDが付かないこと", func(t *testing.T) {
		t.Parallel()

		recorder := &upstreamRecorder{}
		router := setupTestServer(t, newUpstream(t, recorder).URL, 100)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"a@b.c"}`))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusOK, w.Code)
		}
		if recorder.lastPath != "/api/auth/login" {
			t.Errorf("期待するパス %q, 実際のパス %q", "/api/auth/login", recorder.lastPath)
		}
		if recorder.lastUserID != "" {
			t.Errorf("X-User-IDが付与されています: %q", recorder.lastUserID)
		}
	})

	t.Run("正常系_バイナリボディが無傷のまま転送されること", func(t *testing.T) {
		t.Parallel()

		recorder := &upstreamRecorder{}
		router := setupTestServer(t, newUpstream(t, recorder).URL, 100)

		binary := []byte{0x00, 0x01, 0xFF, 0xFE, 0x89, 0x50, 0x4E, 0x47}
		req := httptest.NewRequest(http.MethodPost, "/v1/media/upload", bytes.NewReader(binary))
		req.Header.Set("Authorization", authHeader(t, "user-1"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusOK, w.Code)
		}
		if !bytes.Equal(recorder.lastBody, binary) {
			t.Errorf("期待するボディ %v, 実際のボディ %v", binary, recorder.lastBody)
		}
		if recorder.lastContentType != "multipart/form-data; boundary=xyz" {
			t.Errorf("期待するContent-Type %q, 実際のContent-Type %q", "multipart/form-data; boundary=xyz", recorder.lastContentType)
		}
	})

	t.Run("異常系_資格情報なしのリクエストは上流に到達しないこと", func(t *testing.T) {
		t.Parallel()

		recorder := &upstreamRecorder{}
		router := setupTestServer(t, newUpstream(t, recorder).URL, 100)

		req := httptest.NewRequest(http.MethodGet, "/v1/posts", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusUnauthorized, w.Code)
		}
		if !strings.Contains(w.Body.String(), middleware.CodeMissingCredential) {
			t.Errorf("レスポンスに%sが含まれていません: %s", middleware.CodeMissingCredential, w.Body.String())
		}
		if recorder.calls != 0 {
			t.Errorf("期待する上流呼び出し数 0, 実際の呼び出し数 %d", recorder.calls)
		}
	})

	t.Run("異常系_無効なトークンは上流に到達しないこと", func(t *testing.T) {
		t.Parallel()

		recorder := &upstreamRecorder{}
		router := setupTestServer(t, newUpstream(t, recorder).URL, 100)

		req := httptest.NewRequest(http.MethodGet, "/v1/search?q=test", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusUnauthorized, w.Code)
		}
		if !strings.Contains(w.Body.String(), middleware.CodeInvalidCredential) {
			t.Errorf("レスポンスに%sが含まれていません: %s", middleware.CodeInvalidCredential, w.Body.String())
		}
		if recorder.calls != 0 {
			t.Errorf("期待する上流呼び出し数 0, 実際の呼び出し数 %d", recorder.calls)
		}
	})

	t.Run("異常系_レート制限は認証検証より先に評価されること", func(t *testing.T) {
		t.Parallel()

		recorder := &upstreamRecorder{}
		router := setupTestServer(t, newUpstream(t, recorder).URL, 2)

		// 資格情報のないリクエストでも制限は消費される
		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/posts", nil))
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("%d回目: 期待するステータスコード %d, 実際のステータスコード %d", i+1, http.StatusUnauthorized, w.Code)
			}
		}

		// 3回目は認証エラーではなくレート制限で拒否される
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/posts", nil))
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusTooManyRequests, w.Code)
		}
		if !strings.Contains(w.Body.String(), middleware.CodeRateLimited) {
			t.Errorf("レスポンスに%sが含まれていません: %s", middleware.CodeRateLimited, w.Body.String())
		}
		if recorder.calls != 0 {
			t.Errorf("期待する上流呼び出し数 0, 実際の呼び出し数 %d", recorder.calls)
		}
	})

	t.Run("異常系_上流サービス停止時は500を返すこと", func(t *testing.T) {
		t.Parallel()

		// 起動してすぐ閉じたサーバーのURLを到達不能な転送先として使う
		dead := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		deadURL := dead.URL
		dead.Close()

		router := setupTestServer(t, deadURL, 100)

		req := httptest.NewRequest(http.MethodGet, "/v1/posts", nil)
		req.Header.Set("Authorization", authHeader(t, "user-1"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestRewritePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "プレフィックスのみ", path: "/v1/posts", want: "/api/posts"},
		{name: "サブパス付き", path: "/v1/auth/refresh-token", want: "/api/auth/refresh-token"},
		{name: "深いサブパス", path: "/v1/media/upload", want: "/api/media/upload"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := rewritePath(tt.path); got != tt.want {
				t.Errorf("rewritePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
