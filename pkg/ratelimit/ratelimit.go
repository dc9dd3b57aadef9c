// Package ratelimit は共有キーバリューストアを用いた分散レートリミッタを提供する。
//
// リミッタはストアハンドルとポリシーパラメータを持つ明示的なオブジェクトであり、
// 必要とするコンポーネントに参照として渡される。グローバル状態は持たない。
// ストアに到達できない場合はリクエストを拒否する（フェイルクローズ）。
// セキュリティ制御であるため、判断できない場合に許可してはならない。
package ratelimit

import (
	"context"
	"time"

	"github.com/nao1215/socialhub/pkg/kvstore"
)

// Limiter はキー単位のレート制限判定を定義する。
type Limiter interface {
	// Allow はキー（クライアントアドレス等）に対するリクエストを許可するか判定する。
	// ストア障害時はfalseとエラーを返す。
	Allow(ctx context.Context, key string) (bool, error)
}

// FixedWindow は固定ウィンドウ方式のレートリミッタ。
// ウィンドウ期間内のリクエスト数をストア上のカウンタで数え、上限を超えたら拒否する。
// カウンタのTTLはウィンドウ期間と等しく、ウィンドウ境界でアトミックにリセットされる。
type FixedWindow struct {
	// store は共有キーバリューストア。
	store kvstore.Store
	// limit はウィンドウ内で許可する最大リクエスト数。
	limit int64
	// window はウィンドウ期間。
	window time.Duration
	// prefix はストア上のキープレフィックス。
	prefix string
}

// NewFixedWindow は固定ウィンドウリミッタを生成する。
func NewFixedWindow(store kvstore.Store, limit int64, window time.Duration, prefix string) *FixedWindow {
	return &FixedWindow{
		store:  store,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// Allow はウィンドウ内のカウンタをインクリメントし、上限以内かどうかを返す。
func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	count, err := f.store.IncrWindow(ctx, f.prefix+":"+key, f.window)
	if err != nil {
		// フェイルクローズ: ストア障害時は拒否する
		return false, err
	}
	return count <= f.limit, nil
}

// TokenBucket はトークンバケット方式のレートリミッタ。
// points個のトークンがduration毎に補充され、リクエスト毎に1つ消費する。
// 固定ウィンドウより先に評価され、バースト・DoSトラフィックを抑える。
type TokenBucket struct {
	// store は共有キーバリューストア。
	store kvstore.Store
	// points はバケットの容量（補充されるトークン数）。
	points int64
	// duration はトークンの補充間隔。
	duration time.Duration
	// prefix はストア上のキープレフィックス。
	prefix string
}

// NewTokenBucket はトークンバケットリミッタを生成する。
func NewTokenBucket(store kvstore.Store, points int64, duration time.Duration, prefix string) *TokenBucket {
	return &TokenBucket{
		store:    store,
		points:   points,
		duration: duration,
		prefix:   prefix,
	}
}

// Allow はバケットからトークンを1つ取得し、取得できたかどうかを返す。
func (t *TokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := t.store.TakeToken(ctx, t.prefix+":"+key, t.points, t.duration)
	if err != nil {
		// フェイルクローズ: ストア障害時は拒否する
		return false, err
	}
	return allowed, nil
}
