package config

import (
	"os"
	"testing"
)

// unsetEnv は環境変数を削除し、テスト終了時に元の値へ戻す。
func unsetEnv(t *testing.T, key string) {
	t.Helper()

	prev, ok := os.LookupEnv(key)
	// t.Setenvを先に呼んで並列実行を禁止しつつ復元処理を登録する
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("環境変数 %s の削除に失敗: %v", key, err)
	}
	t.Cleanup(func() {
		if ok {
			_ = os.Setenv(key, prev)
		}
	})
}
