package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/socialhub/pkg/kvstore"
	"github.com/nao1215/socialhub/pkg/ratelimit"
)

// stubLimiter は固定の判定結果を返すリミッタ。
type stubLimiter struct {
	allowed bool
	err     error
}

func (s *stubLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return s.allowed, s.err
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	newRouter := func(limiter ratelimit.Limiter) *gin.Engine {
		router := gin.New()
		router.GET("/", RateLimit(limiter), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("正常系_制限内のリクエストは通過すること", func(t *testing.T) {
		t.Parallel()

		limiter := ratelimit.NewFixedWindow(kvstore.NewMemory(), 3, 15*time.Minute, "rl:gw")
		router := newRouter(limiter)

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("%d回目: 期待するステータスコード %d, 実際のステータスコード %d", i+1, http.StatusOK, w.Code)
			}
		}
	})

	t.Run("異常系_制限超過でRATE_LIMITEDの429を返すこと", func(t *testing.T) {
		t.Parallel()

		limiter := ratelimit.NewFixedWindow(kvstore.NewMemory(), 2, 15*time.Minute, "rl:gw")
		router := newRouter(limiter)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			router.ServeHTTP(w, req)
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusTooManyRequests, w.Code)
		}
		if !strings.Contains(w.Body.String(), CodeRateLimited) {
			t.Errorf("レスポンスに%sが含まれていません: %s", CodeRateLimited, w.Body.String())
		}
	})

	t.Run("異常系_ストア障害時はフェイルクローズで429を返すこと", func(t *testing.T) {
		t.Parallel()

		router := newRouter(&stubLimiter{allowed: false, err: errors.New("接続できません")})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("期待するステータスコード %d, 実際のステータスコード %d", http.StatusTooManyRequests, w.Code)
		}
		if !strings.Contains(w.Body.String(), CodeRateLimited) {
			t.Errorf("レスポンスに%sが含まれていません: %s", CodeRateLimited, w.Body.String())
		}
	})
}
