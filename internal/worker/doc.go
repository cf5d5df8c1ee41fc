// Package worker はゲートウェイの背後で動作するバックエンドワーカーを提供する。
//
// ワーカーはPOST /rpc でmessage.Envelopeを受け取り、パターンごとの
// ハンドラで処理して応答する。catalog・media・searchの各サービスは
// 同じサーバー実装をサービス名だけ変えて起動する。
// ゲートウェイ側からの呼び出しにはClientを使う。
package worker
