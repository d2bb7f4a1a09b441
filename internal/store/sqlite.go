package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mindhaven/companion/internal/chat"
	"github.com/mindhaven/companion/internal/subscription"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode keeps reads cheap while the chat session appends.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, created_at);

	CREATE TABLE IF NOT EXISTS standings (
		user_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		plan_name TEXT,
		price TEXT,
		next_billing_date TEXT,
		trial_days_remaining INTEGER,
		expiration_date TEXT,
		is_subscribed INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMessage caches a chat message, ignoring ids already present.
func (s *SQLiteStore) SaveMessage(ctx context.Context, identity string, msg chat.Message) error {
	query := `
	INSERT OR IGNORE INTO messages (id, user_id, role, content, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, identity, msg.Role, msg.Content, msg.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Messages returns cached messages in arrival order.
func (s *SQLiteStore) Messages(ctx context.Context, identity string, limit int) ([]chat.Message, error) {
	query := `
		SELECT id, role, content, created_at
		FROM messages WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{identity}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var msg chat.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Rows came back newest-first to apply the limit; flip to arrival order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ClearMessages drops the cached conversation for an identity.
func (s *SQLiteStore) ClearMessages(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, identity); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// SaveStanding snapshots the derived subscription standing.
func (s *SQLiteStore) SaveStanding(ctx context.Context, identity string, standing subscription.Standing) error {
	query := `
	INSERT INTO standings (user_id, status, plan_name, price, next_billing_date,
		trial_days_remaining, expiration_date, is_subscribed, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		status = excluded.status,
		plan_name = excluded.plan_name,
		price = excluded.price,
		next_billing_date = excluded.next_billing_date,
		trial_days_remaining = excluded.trial_days_remaining,
		expiration_date = excluded.expiration_date,
		is_subscribed = excluded.is_subscribed,
		updated_at = excluded.updated_at`

	var trialDays any
	if standing.TrialDaysRemaining != nil {
		trialDays = *standing.TrialDaysRemaining
	}
	subscribed := 0
	if standing.IsSubscribed {
		subscribed = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		identity, string(standing.Status), standing.PlanName, standing.Price,
		standing.NextBillingDate, trialDays, standing.ExpirationDate,
		subscribed, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert standing: %w", err)
	}
	return nil
}

// GetStanding returns the last snapshot, or nil when none exists.
func (s *SQLiteStore) GetStanding(ctx context.Context, identity string) (*subscription.Standing, error) {
	query := `
		SELECT status, plan_name, price, next_billing_date,
		       trial_days_remaining, expiration_date, is_subscribed
		FROM standings WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, identity)

	var standing subscription.Standing
	var status string
	var trialDays sql.NullInt64
	var subscribed int

	err := row.Scan(&status, &standing.PlanName, &standing.Price,
		&standing.NextBillingDate, &trialDays, &standing.ExpirationDate, &subscribed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan standing row: %w", err)
	}

	standing.Status = subscription.Status(status)
	standing.IsSubscribed = subscribed != 0
	if trialDays.Valid {
		days := int(trialDays.Int64)
		standing.TrialDaysRemaining = &days
	}
	return &standing, nil
}
