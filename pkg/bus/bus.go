// Package bus はブローカーを介した耐久性のあるpub/subトランスポートの抽象を提供する。
//
// 配送保証はat-least-onceである。Publishはブローカーへの永続化が完了してから
// 成功を返す。Subscribeで登録されたハンドラがエラーを返したメッセージは
// 破棄されずに再配送されるため、ハンドラは冪等でなければならない。
package bus

import (
	"context"
	"errors"
)

// ErrClosed はクローズ済みのバスへの操作を表す。
var ErrClosed = errors.New("bus: バスはクローズ済みです")

// Handler はトピックに配送されたメッセージを処理する関数。
// nilを返すとメッセージは確認応答（ack）され、エラーを返すと再配送される。
type Handler func(ctx context.Context, body []byte) error

// Bus は耐久性のあるpub/subトランスポートを定義する。
// 実装はAMQP（本番・RabbitMQ）とMemory（テスト）の2種類がある。
type Bus interface {
	// Publish はメッセージをトピックに発行する。
	// ブローカーの耐久キューへの永続化が完了してから成功を返す。
	Publish(ctx context.Context, topic string, body []byte) error
	// Subscribe はトピックへのハンドラを登録する。
	// ハンドラは配送されたメッセージ毎に1回呼び出され、エラー時は再配送される。
	Subscribe(topic string, handler Handler) error
	// Close はブローカーとの接続を閉じる。
	Close() error
}
