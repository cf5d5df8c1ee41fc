// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// ゲートウェイからバックエンドワーカーへのRPC送信や、
// 外部IDプロバイダーのディレクトリAPI呼び出しに使用する。
// タイムアウトとBearerトークンの付与をオプションで設定できる。
package httpclient
