package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis はRedisを利用したStore実装。
// ゲートウェイと各サービスの全インスタンスが同一のRedisを参照することで、
// レートリミットカウンタとキャッシュを共有する。
type Redis struct {
	// client はgo-redisのクライアント。
	client *redis.Client
}

// NewRedis は接続URL（例: "redis://localhost:6379"）からRedisストアを生成する。
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("Redis URLの解析に失敗: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// incrWindowScript はカウンタのインクリメントとTTL設定をアトミックに行うLuaスクリプト。
// カウンタの新規作成時のみTTLを設定する。
var incrWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// takeTokenScript はトークンバケットの補充と取得をアトミックに行うLuaスクリプト。
// ARGV[1]=容量, ARGV[2]=補充間隔(ミリ秒), ARGV[3]=現在時刻(ミリ秒)。
// バケット状態はハッシュ {tokens, ts} として保持し、補充間隔の2倍でTTL失効させる。
var takeTokenScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
    tokens = capacity
    ts = now
end

local elapsed = now - ts
if elapsed > 0 then
    tokens = math.min(capacity, tokens + capacity * (elapsed / interval))
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], interval * 2)
return allowed
`)

// Get はキーに対応する値を取得する。
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Redisからの取得に失敗: %w", err)
	}
	return v, nil
}

// SetEx はキーに値をTTL付きで設定する。
func (r *Redis) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("Redisへの設定に失敗: %w", err)
	}
	return nil
}

// Del は指定されたキーを削除する。
func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("Redisからの削除に失敗: %w", err)
	}
	return nil
}

// DelPrefix は指定されたプレフィックスを持つ全キーをSCANで走査して削除する。
func (r *Redis) DelPrefix(ctx context.Context, prefix string) (int, error) {
	var deleted int
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return deleted, fmt.Errorf("Redisからの一括削除に失敗: %w", err)
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("Redisの走査に失敗: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return deleted, fmt.Errorf("Redisからの一括削除に失敗: %w", err)
		}
		deleted += len(batch)
	}
	return deleted, nil
}

// IncrWindow はカウンタをアトミックにインクリメントする。
func (r *Redis) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrWindowScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("カウンタのインクリメントに失敗: %w", err)
	}
	return count, nil
}

// TakeToken はトークンバケットからトークンを1つ取得する。
func (r *Redis) TakeToken(ctx context.Context, key string, capacity int64, refillInterval time.Duration) (bool, error) {
	allowed, err := takeTokenScript.Run(
		ctx, r.client, []string{key},
		capacity, refillInterval.Milliseconds(), time.Now().UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("トークンの取得に失敗: %w", err)
	}
	return allowed == 1, nil
}

// Ping はRedisへの疎通を確認する。
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redisへの疎通確認に失敗: %w", err)
	}
	return nil
}

// Close はRedisとの接続を閉じる。
func (r *Redis) Close() error {
	return r.client.Close()
}
