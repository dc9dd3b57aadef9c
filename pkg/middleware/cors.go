package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// ゲートウェイは外部に公開される唯一のサービスであり、ブラウザで動く
// フロントエンドからの/v1配下へのアクセスをここで許可する。内部サービスは
// ゲートウェイ経由でのみ呼ばれるため適用しない。
//
// 許可ヘッダーにX-User-IDは含めない。検証済みユーザーIDはゲートウェイが
// 注入するものであり、クライアントに送らせる理由がない。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		// 応答がOriginヘッダーに依存することを中間キャッシュに伝える
		c.Header("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if _, ok := originsSet[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
