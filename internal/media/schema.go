package media

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS media (
    -- メディアの一意識別子
    id TEXT PRIMARY KEY,
    -- アップロードしたユーザーのID
    user_id TEXT NOT NULL,
    -- オブジェクトストレージ上のキー
    object_key TEXT NOT NULL,
    -- アップロード時の元のファイル名
    original_name TEXT NOT NULL,
    -- ファイルのMIMEタイプ
    mime_type TEXT NOT NULL,
    -- ファイルの公開URL
    url TEXT NOT NULL,
    -- アップロード日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- ユーザーIDでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_media_user_id
    ON media(user_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
