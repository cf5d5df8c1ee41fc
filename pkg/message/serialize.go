package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New は新しいEnvelopeを生成する。
// dataにはパターン固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func New(pattern Pattern, data any) (*Envelope, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("メッセージデータのシリアライズに失敗: %w", err)
	}

	return &Envelope{
		ID:        uuid.New().String(),
		Pattern:   pattern,
		Data:      jsonData,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewReply は成功応答を生成する。
func NewReply(id string, data any) (*Reply, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("応答データのシリアライズに失敗: %w", err)
	}
	return &Reply{ID: id, OK: true, Data: jsonData}, nil
}

// ErrorReply は失敗応答を生成する。
func ErrorReply(id string, err error) *Reply {
	return &Reply{ID: id, Error: err.Error()}
}

// DecodeData はEnvelopeのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Envelope) (*T, error) {
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("メッセージデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}

// DecodeReply は成功応答のDataを指定された型にデシリアライズする。
// 失敗応答の場合はそのエラーメッセージを返す。
func DecodeReply[T any](r *Reply) (*T, error) {
	if !r.OK {
		return nil, fmt.Errorf("リモート処理が失敗: %s", r.Error)
	}
	var data T
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return nil, fmt.Errorf("応答データのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
