// Package cache は共有キーバリューストアを用いたリードスルーキャッシュを提供する。
//
// キャッシュは最適化であって依存ではない。ストア障害時はGetがミスとして振る舞い、
// Set/Invalidateは警告ログを出して処理を継続する。リクエストを失敗させてはならない。
//
// 書き込みとInvalidateはトランザクションではない。Invalidate実行後に並行リーダーが
// 書き込み前のデータでキャッシュを再生成する狭い競合ウィンドウが存在するが、
// 結果整合性の範囲内としてTTLで上限を保証する。
package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nao1215/socialhub/pkg/kvstore"
)

// Cache はリソース単位のキーで応答ペイロードを保持するキャッシュ。
type Cache struct {
	// store は共有キーバリューストア。
	store kvstore.Store
}

// New はストアハンドルからキャッシュを生成する。
func New(store kvstore.Store) *Cache {
	return &Cache{store: store}
}

// Get はキーに対応する値を取得する。
// ヒットした場合は値とtrueを、ミスまたはストア障害の場合はnilとfalseを返す。
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("キャッシュの取得に失敗（ミスとして継続）: key=%s, error=%v", key, err)
		}
		return nil, false
	}
	return v, true
}

// Set はキーに値をTTL付きで設定する。ストア障害時は警告ログを出して無視する。
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.store.SetEx(ctx, key, value, ttl); err != nil {
		log.Printf("キャッシュの設定に失敗（無視して継続）: key=%s, error=%v", key, err)
	}
}

// Invalidate は指定されたキーを削除する。ストア障害時は警告ログを出して無視する。
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if err := c.store.Del(ctx, keys...); err != nil {
		log.Printf("キャッシュの無効化に失敗（無視して継続）: keys=%v, error=%v", keys, err)
	}
}

// InvalidatePrefix は指定されたプレフィックスを持つ全キーを削除する。
// 一覧クエリのキャッシュは正確なメンバーシップを追跡せず、名前空間全体を
// 過剰に無効化することで正しさを優先する。
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if _, err := c.store.DelPrefix(ctx, prefix); err != nil {
		log.Printf("キャッシュのプレフィックス無効化に失敗（無視して継続）: prefix=%s, error=%v", prefix, err)
	}
}
