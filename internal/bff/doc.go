// Package bff はフロントエンド向けBFF（Backend for Frontend）サービスの内部実装を提供する。
//
// /bff 配下のエンドポイントで受けたリクエストをコアサービスへ転送し、
// ステータスコードとボディをそのまま返す。ログインと現在ユーザー取得を
// 1回の呼び出しにまとめる合成エンドポイントを除き、独自のロジックや状態は持たない。
package bff
