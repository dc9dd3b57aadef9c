package storage

import (
	"context"
	"io"
	"sync"
)

// Memory はテスト用のインメモリStorage実装。
type Memory struct {
	// mu はobjectsへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// objects はキーからファイル内容へのマップ。
	objects map[string][]byte
}

// NewMemory は新しいインメモリストレージを生成する。
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Upload はファイル内容をメモリに保持し、疑似URLを返す。
func (m *Memory) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content

	return "memory://" + key, nil
}

// Delete はキーに対応するオブジェクトを削除する。
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Exists はキーに対応するオブジェクトが存在するかを返す。テスト検証用。
func (m *Memory) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len は保持しているオブジェクト数を返す。テスト検証用。
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
