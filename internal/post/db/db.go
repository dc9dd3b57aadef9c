// Package db はpostサービスのデータベースアクセスを提供する。
package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX は*sql.DBと*sql.Txの両方が満たすクエリ実行操作。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries はSQLクエリの実行オブジェクト。
type Queries struct {
	db DBTX
}

// New はクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx はトランザクション上でクエリを実行するオブジェクトを返す。
// 投稿本体とメディア関連行のように、複数行をまとめて書き込む操作で使用する。
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Post は投稿を表すDB行。
type Post struct {
	// ID は投稿の一意識別子。
	ID string
	// UserID は投稿を作成したユーザーのID。
	UserID string
	// Content は投稿の本文。
	Content string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// CreatePostParams はCreatePostのパラメータ。
type CreatePostParams struct {
	ID      string
	UserID  string
	Content string
}

// CreatePost は新しい投稿を保存する。
func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, content) VALUES (?, ?, ?)`,
		arg.ID, arg.UserID, arg.Content,
	)
	return err
}

// AddPostMediaParams はAddPostMediaのパラメータ。
type AddPostMediaParams struct {
	PostID   string
	MediaID  string
	Position int64
}

// AddPostMedia は投稿にメディアを紐づける。
// Positionは添付時の並び順を保持する。
func (q *Queries) AddPostMedia(ctx context.Context, arg AddPostMediaParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO post_media (post_id, media_id, position) VALUES (?, ?, ?)`,
		arg.PostID, arg.MediaID, arg.Position,
	)
	return err
}

// GetPostByID はIDで投稿を取得する。
func (q *Queries) GetPostByID(ctx context.Context, id string) (Post, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, created_at FROM posts WHERE id = ?`,
		id,
	)
	var p Post
	err := row.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt)
	return p, err
}

// ListPostMediaIDs は投稿に紐づくメディアIDを添付順に返す。
func (q *Queries) ListPostMediaIDs(ctx context.Context, postID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT media_id FROM post_media WHERE post_id = ? ORDER BY position ASC`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mediaIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, id)
	}
	return mediaIDs, rows.Err()
}

// ListPostsParams はListPostsのパラメータ。
type ListPostsParams struct {
	Limit  int64
	Offset int64
}

// ListPosts は投稿を新しい順にページ単位で返す。
func (q *Queries) ListPosts(ctx context.Context, arg ListPostsParams) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM posts
		 ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountPosts は投稿の総数を返す。
func (q *Queries) CountPosts(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`)
	var count int64
	err := row.Scan(&count)
	return count, err
}

// DeletePost は投稿を削除する。紐づくメディア関連行も外部キーで連鎖削除される。
func (q *Queries) DeletePost(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	return err
}
