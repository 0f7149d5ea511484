// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストIDの付与、アクセスログとメトリクスの記録、パニックリカバリ、
// CORS設定、開発用コアサービスのBearerトークン検証を含む。
package middleware
