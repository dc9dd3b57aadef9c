package gateway

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/socialhub/pkg/middleware"
)

// hopByHopHeaders は転送してはならないホップバイホップヘッダー。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// handleProxy はルートの転送先にリクエストをプロキシするハンドラを返す。
// パスの/v1プレフィックスを/apiに書き換え、ボディは解釈せずストリームする。
// 検証済みユーザーIDをX-User-IDヘッダーとして注入し、クライアントが
// 直接渡した同名ヘッダーは破棄する。
func (s *Server) handleProxy(route proxyRoute) gin.HandlerFunc {
	return func(c *gin.Context) {
		upstreamURL := route.target + rewritePath(c.Request.URL.Path)
		if q := c.Request.URL.RawQuery; q != "" {
			upstreamURL += "?" + q
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, upstreamURL, c.Request.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "転送リクエストの作成に失敗しました"})
			log.Printf("転送リクエスト作成エラー: url=%s, error=%v", upstreamURL, err)
			return
		}
		req.ContentLength = c.Request.ContentLength

		copyProxyHeaders(req.Header, c.Request.Header)
		if !route.opaqueBody {
			req.Header.Set("Content-Type", "application/json")
		}

		// 認証ゲートを通ったリクエストにだけ検証済みユーザーIDを載せる
		if userID := middleware.GetUserID(c); userID != "" {
			req.Header.Set(middleware.HeaderUserID, userID)
		}

		log.Printf("リクエストを転送: %s %s -> %s", c.Request.Method, c.Request.URL.Path, upstreamURL)

		resp, err := s.client.Do(req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サービスへの転送に失敗しました"})
			log.Printf("転送エラー: url=%s, error=%v", upstreamURL, err)
			return
		}
		defer resp.Body.Close()

		log.Printf("内部サービスから応答: url=%s, status=%d", upstreamURL, resp.StatusCode)

		for key, values := range resp.Header {
			if _, ok := hopByHopHeaders[key]; ok {
				continue
			}
			for _, v := range values {
				c.Writer.Header().Add(key, v)
			}
		}
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			log.Printf("応答ボディの転送エラー: url=%s, error=%v", upstreamURL, err)
		}
	}
}

// rewritePath はクライアント向けの/v1プレフィックスを内部サービスの/apiに書き換える。
// パスの残りの部分はバイト単位でそのまま維持する。
func rewritePath(path string) string {
	return "/api" + strings.TrimPrefix(path, "/v1")
}

// copyProxyHeaders はリクエストヘッダーを転送用にコピーする。
// ホップバイホップヘッダーと、クライアントが偽装しうるX-User-IDは除外する。
func copyProxyHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, ok := hopByHopHeaders[key]; ok {
			continue
		}
		if http.CanonicalHeaderKey(key) == http.CanonicalHeaderKey(middleware.HeaderUserID) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
