package devcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/nexia-bff/pkg/event"
)

// ErrEmailExists は同じメールアドレスのユーザーが既に存在することを表す。
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound はユーザーが存在しないことを表す。
var ErrUserNotFound = errors.New("user not found")

// roleUser は登録ユーザーに付与するデフォルトのロール。
const roleUser = "USER"

// User はコアサービスのユーザー。
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// store はユーザーとイベントをSQLiteに保存する。
type store struct {
	db *sql.DB
}

// createUser はユーザーと登録イベントを1つのトランザクションで保存する。
func (s *store) createUser(ctx context.Context, u User, ev *event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, u.Email).Scan(&exists)
	switch {
	case err == nil:
		return ErrEmailExists
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("ユーザーの存在確認に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.Role, u.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_events (id, aggregate_id, aggregate_type, event_type, data, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.AggregateID, string(ev.AggregateType), string(ev.EventType), string(ev.Data), ev.OccurredAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("イベントの保存に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// findByEmail はメールアドレスでユーザーを検索する。
func (s *store) findByEmail(ctx context.Context, email string) (User, error) {
	var (
		u         User
		hash      sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, password_hash, role, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.FullName, &hash, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}

	u.PasswordHash = hash.String
	u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return User{}, fmt.Errorf("created_atの解析に失敗: %w", err)
	}
	return u, nil
}

// listEvents は記録済みのイベントを発生順に返す。
func (s *store) listEvents(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, aggregate_type, event_type, data, occurred_at FROM user_events ORDER BY occurred_at, id`)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []event.Event{}
	for rows.Next() {
		var (
			ev         event.Event
			aggType    string
			evType     string
			data       string
			occurredAt string
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &aggType, &evType, &data, &occurredAt); err != nil {
			return nil, fmt.Errorf("イベントの読み取りに失敗: %w", err)
		}
		ev.AggregateType = event.AggregateType(aggType)
		ev.EventType = event.Type(evType)
		ev.Data = []byte(data)
		if ev.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, fmt.Errorf("occurred_atの解析に失敗: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
