package post

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS posts (
    -- 投稿の一意識別子
    id TEXT PRIMARY KEY,
    -- 投稿を作成したユーザーのID
    user_id TEXT NOT NULL,
    -- 投稿の本文
    content TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS post_media (
    -- 投稿ID
    post_id TEXT NOT NULL,
    -- メディアID
    media_id TEXT NOT NULL,
    -- 添付時の並び順
    position INTEGER NOT NULL,
    PRIMARY KEY (post_id, media_id),
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);

-- ユーザーIDでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_posts_user_id
    ON posts(user_id);

-- 新着順の一覧取得を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_posts_created_at
    ON posts(created_at DESC);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
// 外部キー制約を有効化してからスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("外部キー制約の有効化に失敗: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
