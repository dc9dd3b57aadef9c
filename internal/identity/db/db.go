// Package db はidentityサービスのデータベースアクセスを提供する。
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

// User はユーザーを表すDB行。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Username はユーザー名。
	Username string
	// Email はメールアドレス。
	Email string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// CreatedAt は登録日時。
	CreatedAt time.Time
}

// RefreshToken はリフレッシュトークンを表すDB行。
type RefreshToken struct {
	// Token はトークン文字列。
	Token string
	// UserID はトークンの所有者のユーザーID。
	UserID string
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
	// CreatedAt は発行日時。
	CreatedAt time.Time
}

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
}

// CreateUser は新しいユーザーを登録する。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash) VALUES (?, ?, ?, ?)`,
		arg.ID, arg.Username, arg.Email, arg.PasswordHash,
	)
	return err
}

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`,
		email,
	)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// GetUserByID はIDでユーザーを取得する。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`,
		id,
	)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// CountUsersByEmailOrUsernameParams はCountUsersByEmailOrUsernameのパラメータ。
type CountUsersByEmailOrUsernameParams struct {
	Email    string
	Username string
}

// CountUsersByEmailOrUsername はメールアドレスまたはユーザー名が一致するユーザー数を返す。
// 登録時の重複チェックに使用する。
func (q *Queries) CountUsersByEmailOrUsername(ctx context.Context, arg CountUsersByEmailOrUsernameParams) (int64, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? OR username = ?`,
		arg.Email, arg.Username,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

// CreateRefreshTokenParams はCreateRefreshTokenのパラメータ。
type CreateRefreshTokenParams struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// CreateRefreshToken はリフレッシュトークンを保存する。
func (q *Queries) CreateRefreshToken(ctx context.Context, arg CreateRefreshTokenParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		arg.Token, arg.UserID, arg.ExpiresAt.UTC(),
	)
	return err
}

// GetRefreshToken はトークン文字列でリフレッシュトークンを取得する。
func (q *Queries) GetRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at, created_at FROM refresh_tokens WHERE token = ?`,
		token,
	)
	var rt RefreshToken
	err := row.Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	return rt, err
}

// DeleteRefreshToken はリフレッシュトークンを削除する。
// 存在しないトークンの削除はエラーにならない。
func (q *Queries) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token = ?`,
		token,
	)
	return err
}
