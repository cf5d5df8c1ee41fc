// Package auth はゲートウェイのリクエスト認証・認可パイプラインを提供する。
//
// Bearerトークンの抽出、外部IDプロバイダーによる検証、ローカルユーザーとの照合、
// ルート要件に基づくアクセス判定を、リクエストごとに順番に実行する。
// 認可判定に使うロールは常に永続化されたユーザーレコードの値であり、
// トークンに含まれるロールは身元情報の補助としてのみ扱う。
package auth
