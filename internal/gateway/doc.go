// Package gateway はゲートウェイのHTTP境界を提供する。
//
// すべてのルートは登録時にauth.Requirementを宣言し、リクエストごとに
// auth.Guardを通過してからハンドラーに到達する。拒否理由はHTTPステータスに
// 変換され、内部的な原因はクライアントに返さない。
package gateway
