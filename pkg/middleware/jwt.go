package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTアクセストークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// HeaderUserID は検証済みユーザーIDを内部サービスに伝播するHTTPヘッダーキー。
// このヘッダーを設定できるのはゲートウェイの認証ゲートのみであり、
// クライアントから直接渡された値は決して信頼してはならない。
const HeaderUserID = "X-User-ID"

// 認証・レート制限エラーの分類コード。
const (
	// CodeMissingCredential は資格情報が提示されなかったことを表す。
	CodeMissingCredential = "MISSING_CREDENTIAL"
	// CodeInvalidCredential は資格情報の署名または有効期限が無効なことを表す。
	CodeInvalidCredential = "INVALID_CREDENTIAL"
	// CodeRateLimited はレート制限により拒否されたことを表す。
	CodeRateLimited = "RATE_LIMITED"
)

// accessTokenTTL はアクセストークンの有効期間。
const accessTokenTTL = 15 * time.Minute

// tokenIssuer はJWTの発行者名。
const tokenIssuer = "socialhub-identity"

// GenerateJWT はユーザー情報からアクセストークンを生成する。
// identityサービスが登録・ログイン・リフレッシュ時に呼び出す。
func GenerateJWT(secret, userID, email string) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はベアラートークンを検証する認証ゲートのGinミドルウェアを返す。
// 共有シークレットによる署名検証のみを行い、リクエスト毎に外部サービスへ
// 問い合わせない。トークンストアが停止していても認証パスは影響を受けない。
//
// 検証に成功した場合、コンテキストに "user_id" と "email" を設定する。
// 資格情報が無い場合はMISSING_CREDENTIAL、無効な場合はINVALID_CREDENTIALの
// コードと共に401を返し、リクエストを上流に到達させない。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
				"code":  CodeMissingCredential,
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
				"code":  CodeMissingCredential,
			})
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
				"code":  CodeInvalidCredential,
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthまたはRequireUserIDミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetEmail はGinコンテキストからメールアドレスを取得する。
func GetEmail(c *gin.Context) string {
	email, _ := c.Get("email")
	if e, ok := email.(string); ok {
		return e
	}
	return ""
}
