package event

import (
	"encoding/json"
	"fmt"
)

// Encode はペイロードをJSON形式にシリアライズする。
func Encode(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("イベントペイロードのシリアライズに失敗: %w", err)
	}
	return body, nil
}

// Decode はイベントボディを指定された型のペイロードにデシリアライズする。
func Decode[T any](body []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("イベントペイロードのデシリアライズに失敗: %w", err)
	}
	return &payload, nil
}
