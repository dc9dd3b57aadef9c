// Package kvstore は全サービスで共有されるキーバリューストアの抽象を提供する。
//
// レートリミットカウンタとキャッシュエントリは複数インスタンス間で共有される
// 可変状態であるため、本番実装はRedisを使用する。テストとローカル開発用に
// インメモリ実装も提供する。
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound はキーが存在しないことを表す。
var ErrNotFound = errors.New("kvstore: キーが存在しません")

// Store は共有キーバリューストアの操作を定義する。
//
// IncrWindowとTakeTokenはストアレベルでアトミックであること。
// 複数のゲートウェイ・サービスインスタンスが同一キーに並行アクセスするため、
// read-modify-writeによる競合は許容されない。
type Store interface {
	// Get はキーに対応する値を取得する。存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, key string) ([]byte, error)
	// SetEx はキーに値をTTL付きで設定する。既存の値は上書きされる。
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del は指定されたキーを削除する。存在しないキーは無視する。
	Del(ctx context.Context, keys ...string) error
	// DelPrefix は指定されたプレフィックスを持つ全キーを削除し、削除した数を返す。
	DelPrefix(ctx context.Context, prefix string) (int, error)
	// IncrWindow はキーのカウンタをアトミックにインクリメントし、現在値を返す。
	// カウンタが新規作成された場合のみTTLを設定する。カウンタはTTL満了で消滅し、
	// 明示的に削除されることはない。
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TakeToken はトークンバケットからトークンを1つ取得する。
	// バケットはcapacity個のトークンを持ち、refillInterval毎に満杯まで補充される。
	// 取得できた場合はtrueを返す。
	TakeToken(ctx context.Context, key string, capacity int64, refillInterval time.Duration) (bool, error)
	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error
	// Close はストアとの接続を閉じる。
	Close() error
}
