// Package message はゲートウェイとバックエンドサービス間で交換する
// リクエスト/レスポンスのメッセージ形式を定義する。
package message

import (
	"encoding/json"
	"time"
)

// Pattern はメッセージのルーティングに使うパターン名を表す。
type Pattern string

const (
	// PatternPing は疎通確認のパターン。
	PatternPing Pattern = "service.ping"
)

// Envelope はサービス間で送受信されるリクエストメッセージ。
type Envelope struct {
	// ID はメッセージの一意識別子（UUID）。
	ID string `json:"id"`
	// Pattern は処理を振り分けるためのパターン名。
	Pattern Pattern `json:"pattern"`
	// Data はパターン固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はメッセージが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// Reply はEnvelopeに対する応答。
type Reply struct {
	// ID は応答元のEnvelopeのID。
	ID string `json:"id"`
	// OK は処理が成功したかどうか。
	OK bool `json:"ok"`
	// Data は成功時の応答データ。
	Data json.RawMessage `json:"data,omitempty"`
	// Error は失敗時のエラーメッセージ。
	Error string `json:"error,omitempty"`
}

// PingRequest はservice.pingのリクエストデータ。
type PingRequest struct {
	// From は送信元のサービス名。
	From string `json:"from"`
}

// PingReply はservice.pingの応答データ。
type PingReply struct {
	// Service は応答したサービス名。
	Service string `json:"service"`
	// From はリクエストの送信元。
	From string `json:"from"`
	// ReceivedAt はリクエストを受け取った日時。
	ReceivedAt time.Time `json:"received_at"`
}
