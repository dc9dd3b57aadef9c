package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireUserID はゲートウェイが注入したX-User-IDヘッダーを必須とする
// 内部サービス用のGinミドルウェアを返す。
//
// 内部サービスはゲートウェイ経由でのみ到達可能であり、ヘッダーの値は
// 不透明なユーザーIDのスカラー文字列として扱う。JWTの再検証は行わない。
func RequireUserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証が必要です",
				"code":  CodeMissingCredential,
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
