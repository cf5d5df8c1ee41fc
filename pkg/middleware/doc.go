// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストIDの付与とアクセスログ、パニックリカバリ、CORS設定など、
// ゲートウェイとバックエンドサービスで共通して使用するミドルウェアを含む。
package middleware
