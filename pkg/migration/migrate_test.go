package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	// :memory: は接続ごとに別DBになるため1接続に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はRun関数を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_index.up.sql":      {Data: []byte(`CREATE INDEX idx_items_name ON items(name);`)},
		"migrations/000001_create_items.up.sql":   {Data: []byte(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"migrations/000001_create_items.down.sql": {Data: []byte(`DROP TABLE items;`)},
		"migrations/README.md":                    {Data: []byte(`ignored`)},
		"migrations/nounderscore.up.sql":          {Data: []byte(`ignored`)},
	}

	t.Run("バージョン順に適用され再実行ではスキップされること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		ctx := context.Background()

		n, err := Run(ctx, db, fsys, "migrations", zerolog.Nop())
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用件数 = %d, want 2", n)
		}

		if _, err := db.Exec(`INSERT INTO items (name) VALUES ('a')`); err != nil {
			t.Fatalf("itemsテーブルが作成されていない: %v", err)
		}

		n, err = Run(ctx, db, fsys, "migrations", zerolog.Nop())
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("2回目の適用件数 = %d, want 0", n)
		}

		var versions int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&versions); err != nil {
			t.Fatalf("schema_migrationsの読み取りに失敗: %v", err)
		}
		if versions != 2 {
			t.Errorf("記録されたバージョン数 = %d, want 2", versions)
		}
	})

	t.Run("SQLが不正な場合はエラーになり記録されないこと", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		broken := fstest.MapFS{
			"m/000001_broken.up.sql": {Data: []byte(`CREATE TABLE (`)},
		}

		if _, err := Run(context.Background(), db, broken, "m", zerolog.Nop()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}

		var versions int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&versions); err != nil {
			t.Fatalf("schema_migrationsの読み取りに失敗: %v", err)
		}
		if versions != 0 {
			t.Errorf("記録されたバージョン数 = %d, want 0", versions)
		}
	})

	t.Run("ディレクトリが存在しない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if _, err := Run(context.Background(), db, fstest.MapFS{}, "missing", zerolog.Nop()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})
}
