// Package event はサービス間で交換されるイベントの型定義を提供する。
//
// ペイロードは自己記述的であり、消費側が二次参照なしで処理を完結できる
// 情報を全て含む。発行後のイベントは不変であり、at-least-onceで消費される。
package event

import "time"

// イベントバス上のトピック名。
const (
	// TopicPostCreated は投稿が作成されたことを表す。
	TopicPostCreated = "post.created"
	// TopicPostDeleted は投稿が削除されたことを表す。
	// メディアサービスが消費し、投稿に紐づくメディアをカスケード削除する。
	TopicPostDeleted = "post.deleted"
)

// PostCreatedPayload はpost.createdイベントのペイロード。
type PostCreatedPayload struct {
	// PostID は作成された投稿のID。
	PostID string `json:"postId"`
	// UserID は投稿を作成したユーザーのID。
	UserID string `json:"userId"`
	// Content は投稿の本文。
	Content string `json:"content"`
	// CreatedAt は投稿の作成日時。
	CreatedAt time.Time `json:"createdAt"`
}

// PostDeletedPayload はpost.deletedイベントのペイロード。
type PostDeletedPayload struct {
	// PostID は削除された投稿のID。
	PostID string `json:"postId"`
	// UserID は削除を実行したユーザーのID。
	UserID string `json:"userId"`
	// MediaIDs は投稿に紐づいていたメディアIDの順序付きリスト。
	MediaIDs []string `json:"mediaIds"`
}
