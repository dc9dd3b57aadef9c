package bus

import (
	"context"
	"log"
	"sync"
)

// memoryMaxRedeliver はインメモリバスの最大再配送回数。
// 本物のブローカーと異なり無限の再配送はテストをハングさせるため上限を設ける。
const memoryMaxRedeliver = 3

// Memory はテスト用のインプロセスBus実装。
// Publishは登録済みハンドラを同期的に呼び出す。ハンドラがエラーを返した場合は
// 上限回数まで即座に再配送し、at-least-once配送の振る舞いを再現する。
type Memory struct {
	// mu はhandlersとclosedへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// handlers はトピック毎のハンドラのマップ。
	handlers map[string][]Handler
	// closed はClose済みかどうかを表す。
	closed bool
}

// NewMemory は新しいインメモリバスを生成する。
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string][]Handler)}
}

// Publish はトピックの全ハンドラを同期的に呼び出す。
// ハンドラのエラーは再配送で処理されるため発行側には返さない。
// クローズ済みの場合はErrClosedを返す（ブローカー永続化失敗に相当）。
func (m *Memory) Publish(ctx context.Context, topic string, body []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	handlers := append([]Handler(nil), m.handlers[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		for attempt := 1; ; attempt++ {
			err := h(ctx, body)
			if err == nil {
				break
			}
			if attempt > memoryMaxRedeliver {
				log.Printf("メッセージの再配送上限に到達: topic=%s, error=%v", topic, err)
				break
			}
			log.Printf("ハンドラがエラーを返したため再配送します: topic=%s, attempt=%d, error=%v", topic, attempt, err)
		}
	}
	return nil
}

// Subscribe はトピックへのハンドラを登録する。
func (m *Memory) Subscribe(topic string, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.handlers[topic] = append(m.handlers[topic], handler)
	return nil
}

// Close はバスをクローズする。以降のPublish/SubscribeはErrClosedを返す。
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
