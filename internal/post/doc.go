// Package post は投稿サービスを提供する。
//
// 投稿の作成・一覧・取得・削除の4つの操作を持つ。読み取りパスは
// 共有キーバリューストア上のリードスルーキャッシュを経由し、書き込みパスは
// キャッシュ無効化とイベント発行（post.created / post.deleted）を行う。
// post.deletedイベントは紐づくメディアIDを運び、mediaサービスの
// カスケード削除を駆動する。
package post
