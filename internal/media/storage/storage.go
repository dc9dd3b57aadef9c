// Package storage はメディアファイルのオブジェクトストレージ抽象を提供する。
//
// 実装はS3（本番）とMemory（テスト）の2種類がある。アップロードされた
// ファイルはキーで識別され、公開URLで参照される。
package storage

import (
	"context"
	"io"
)

// Storage はメディアファイルの保存先を定義する。
type Storage interface {
	// Upload はファイルをキーの位置に保存し、公開URLを返す。
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	// Delete はキーに対応するファイルを削除する。
	// 存在しないキーの削除はエラーにならない。
	Delete(ctx context.Context, key string) error
}
