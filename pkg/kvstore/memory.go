package kvstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory はテスト・ローカル開発用のインメモリStore実装。
// 単一プロセス内でのみ共有され、TTLは参照時に評価される。
type Memory struct {
	// mu は全フィールドへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// entries はキーと値・有効期限のマップ。
	entries map[string]memoryEntry
	// buckets はトークンバケットの状態マップ。
	buckets map[string]*memoryBucket
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
}

// memoryEntry は値と有効期限の組。
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryBucket はトークンバケットの状態。
type memoryBucket struct {
	tokens       float64
	lastRefillAt time.Time
}

// NewMemory は新しいインメモリStoreを生成する。
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock は時刻取得関数を差し替えたインメモリStoreを生成する。
// レートウィンドウの満了やTTL失効をテストで再現するために使用する。
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		buckets: make(map[string]*memoryBucket),
		now:     now,
	}
}

// Get はキーに対応する値を取得する。存在しない、または失効済みの場合はErrNotFoundを返す。
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	// 呼び出し側の変更から保護するためコピーを返す
	v := make([]byte, len(e.value))
	copy(v, e.value)
	return v, nil
}

// SetEx はキーに値をTTL付きで設定する。
func (m *Memory) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = memoryEntry{value: v, expiresAt: m.now().Add(ttl)}
	return nil
}

// Del は指定されたキーを削除する。
func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// DelPrefix は指定されたプレフィックスを持つ全キーを削除する。
func (m *Memory) DelPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// IncrWindow はキーのカウンタをアトミックにインクリメントする。
func (m *Memory) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		m.entries[key] = memoryEntry{value: []byte("1"), expiresAt: m.now().Add(ttl)}
		return 1, nil
	}

	count := parseCount(e.value) + 1
	e.value = formatCount(count)
	m.entries[key] = e
	return count, nil
}

// TakeToken はトークンバケットからトークンを1つ取得する。
func (m *Memory) TakeToken(_ context.Context, key string, capacity int64, refillInterval time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &memoryBucket{tokens: float64(capacity), lastRefillAt: now}
		m.buckets[key] = b
	}

	// 経過時間に比例してトークンを補充する（capacity個 / refillInterval）
	elapsed := now.Sub(b.lastRefillAt)
	if elapsed > 0 {
		refill := float64(capacity) * (float64(elapsed) / float64(refillInterval))
		b.tokens = minFloat(float64(capacity), b.tokens+refill)
		b.lastRefillAt = now
	}

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Ping は常に成功する。
func (m *Memory) Ping(_ context.Context) error {
	return nil
}

// Close は保持している全データを破棄する。
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]memoryEntry)
	m.buckets = make(map[string]*memoryBucket)
	return nil
}

// expired はエントリが失効済みかどうかを判定する。
func (m *Memory) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}

// parseCount はカウンタ値をint64に変換する。
func parseCount(value []byte) int64 {
	var count int64
	for _, b := range value {
		if b < '0' || b > '9' {
			return 0
		}
		count = count*10 + int64(b-'0')
	}
	return count
}

// formatCount はint64のカウンタ値をバイト列に変換する。
func formatCount(count int64) []byte {
	if count == 0 {
		return []byte("0")
	}
	var buf [20]byte
	i := len(buf)
	for count > 0 {
		i--
		buf[i] = byte('0' + count%10)
		count /= 10
	}
	return append([]byte(nil), buf[i:]...)
}

// minFloat は2つのfloat64のうち小さい方を返す。
func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
