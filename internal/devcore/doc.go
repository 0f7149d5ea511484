// Package devcore はローカル開発と結合テスト用のコアサービスを提供する。
//
// BFFが依存する登録・ログイン・現在ユーザー取得のAPIだけを実装し、
// ユーザーはSQLiteに、パスワードはbcryptで、アクセストークンはHS256のJWTで扱う。
// 登録時には UserRegistered イベントを同じトランザクションでアウトボックスに記録する。
package devcore
