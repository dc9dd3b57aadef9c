// Package db はmediaサービスのデータベースアクセスを提供する。
package db

import (
	"context"
	"database/sql"
	"time"
)

// Queries はSQLクエリの実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// New はクエリ実行オブジェクトを生成する。
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// Media はアップロード済みメディアを表すDB行。
type Media struct {
	// ID はメディアの一意識別子。
	ID string
	// UserID はアップロードしたユーザーのID。
	UserID string
	// ObjectKey はオブジェクトストレージ上のキー。
	ObjectKey string
	// OriginalName はアップロード時の元のファイル名。
	OriginalName string
	// MimeType はファイルのMIMEタイプ。
	MimeType string
	// URL はファイルの公開URL。
	URL string
	// CreatedAt はアップロード日時。
	CreatedAt time.Time
}

// CreateMediaParams はCreateMediaのパラメータ。
type CreateMediaParams struct {
	ID           string
	UserID       string
	ObjectKey    string
	OriginalName string
	MimeType     string
	URL          string
}

// CreateMedia は新しいメディアレコードを保存する。
func (q *Queries) CreateMedia(ctx context.Context, arg CreateMediaParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO media (id, user_id, object_key, original_name, mime_type, url)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.UserID, arg.ObjectKey, arg.OriginalName, arg.MimeType, arg.URL,
	)
	return err
}

// GetMediaByID はIDでメディアレコードを取得する。
func (q *Queries) GetMediaByID(ctx context.Context, id string) (Media, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, object_key, original_name, mime_type, url, created_at
		 FROM media WHERE id = ?`,
		id,
	)
	var m Media
	err := row.Scan(&m.ID, &m.UserID, &m.ObjectKey, &m.OriginalName, &m.MimeType, &m.URL, &m.CreatedAt)
	return m, err
}

// ListMediaByUserID はユーザーのメディアレコードを新しい順に返す。
func (q *Queries) ListMediaByUserID(ctx context.Context, userID string) ([]Media, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, object_key, original_name, mime_type, url, created_at
		 FROM media WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []Media
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.ID, &m.UserID, &m.ObjectKey, &m.OriginalName, &m.MimeType, &m.URL, &m.CreatedAt); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

// DeleteMedia はメディアレコードを削除する。
// 存在しないレコードの削除はエラーにならない。
func (q *Queries) DeleteMedia(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	return err
}
