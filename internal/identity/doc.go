// Package identity はユーザー認証サービスを提供する。
//
// ユーザー登録・ログイン・トークン更新・ログアウトの4つの操作を持つ。
// アクセストークンはHS256署名のJWT、リフレッシュトークンはDB保存の
// ランダム文字列であり、更新のたびにローテーションされる。
// 登録エンドポイントには他より厳しいレート制限が適用される。
package identity
