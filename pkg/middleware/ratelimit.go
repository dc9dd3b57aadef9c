package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/socialhub/pkg/ratelimit"
)

// RateLimit はクライアントアドレス単位のレート制限を適用するGinミドルウェアを返す。
// 認証検証やプロキシ転送より先に評価し、不正なクライアントに費やすリソースを抑える。
//
// リミッタはフェイルクローズであり、共有ストアに到達できない場合も429を返す。
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Printf("レートリミットストアへのアクセスに失敗（フェイルクローズで拒否）: ip=%s, error=%v", c.ClientIP(), err)
		}
		if !allowed {
			log.Printf("レート制限超過: ip=%s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "リクエストが多すぎます",
				"code":  CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}
