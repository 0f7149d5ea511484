package devcore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nao1215/nexia-bff/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// initSchema はSQLiteデータベースにマイグレーションを適用する。
func initSchema(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
