// Package httpclient は上流のコアサービスを呼び出すHTTPクライアントを提供する。
//
// リクエストボディとレスポンスボディをバイト列のまま扱い、BFFが
// ステータスコードとボディを加工せずに中継できるようにする。
// 非2xxの応答は *StatusError、通信失敗や不正なJSONはラップしたエラーとして返す。
package httpclient
