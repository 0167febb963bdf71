// Package store persists bot authorization state in SQLite: the users
// allowed to talk to the bot, one-shot invite codes, and a small
// key/value settings table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		added_by INTEGER,
		is_active BOOLEAN DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS invites (
		id TEXT PRIMARY KEY,
		created_by INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		used_by INTEGER,
		used_at TIMESTAMP,
		is_active BOOLEAN DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// User is one row of the users table.
type User struct {
	ID       int64
	Username string
	AddedAt  time.Time
	AddedBy  int64
	IsActive bool
}

// Store wraps the SQLite database holding users, invites and settings.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, applies the
// schema and seeds the admin user. added_by 0 marks rows added by the
// system rather than by another user.
func Open(path string, adminID int64) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids busy errors.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	if _, err := db.Exec(
		`INSERT OR IGNORE INTO users (id, username, added_by, is_active) VALUES (?, 'admin', 0, TRUE)`,
		adminID,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding admin user: %w", err)
	}

	log.Printf("[Store] Database initialized at %s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddUser inserts a new authorized user. If the user already exists the
// row is reactivated and the username refreshed instead; the returned
// bool reports whether a new row was created.
func (s *Store) AddUser(ctx context.Context, id int64, username string, addedBy int64) (bool, error) {
	var existing int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?`, id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO users (id, username, added_by) VALUES (?, ?, ?)`,
			id, username, addedBy,
		); err != nil {
			return false, fmt.Errorf("inserting user %d: %w", id, err)
		}
		log.Printf("[Store] Added new user: %d (%s)", id, username)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up user %d: %w", id, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, is_active = TRUE WHERE id = ?`,
		username, id,
	); err != nil {
		return false, fmt.Errorf("updating user %d: %w", id, err)
	}
	log.Printf("[Store] Updated existing user: %d (%s)", id, username)
	return false, nil
}

// IsAuthorized reports whether id belongs to an active user.
func (s *Store) IsAuthorized(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = ? AND is_active = TRUE`, id,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking authorization for %d: %w", id, err)
	}
	return true, nil
}

// CreateInvite stores a fresh one-shot invite code and returns it.
// Eight characters keep the resulting deep link short.
func (s *Store) CreateInvite(ctx context.Context, createdBy int64) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		code := uuid.NewString()[:8]
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO invites (id, created_by) VALUES (?, ?)`,
			code, createdBy,
		)
		if err == nil {
			log.Printf("[Store] Created invite %s by user %d", code, createdBy)
			return code, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("creating invite: %w", lastErr)
}

// UseInvite redeems an invite code for userID. It returns false when
// the code is unknown, already used or revoked. Redeeming authorizes
// the user with added_by 0.
func (s *Store) UseInvite(ctx context.Context, code string, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invites SET used_by = ?, used_at = CURRENT_TIMESTAMP, is_active = FALSE
		 WHERE id = ? AND is_active = TRUE AND used_by IS NULL`,
		userID, code,
	)
	if err != nil {
		return false, fmt.Errorf("redeeming invite %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("redeeming invite %s: %w", code, err)
	}
	if n == 0 {
		log.Printf("[Store] Invalid or used invite: %s", code)
		return false, nil
	}

	if _, err := s.AddUser(ctx, userID, "", 0); err != nil {
		return false, fmt.Errorf("authorizing invited user %d: %w", userID, err)
	}
	log.Printf("[Store] Invite %s used by user %d", code, userID)
	return true, nil
}

// AllUsers returns every user row, oldest first.
func (s *Store) AllUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, added_at, added_by, is_active FROM users ORDER BY added_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u        User
			username sql.NullString
			addedBy  sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &username, &u.AddedAt, &addedBy, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		u.Username = username.String
		u.AddedBy = addedBy.Int64
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Deactivate marks a user inactive. Deactivating an unknown user is a
// no-op.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("deactivating user %d: %w", id, err)
	}
	log.Printf("[Store] Deactivated user: %d", id)
	return nil
}

// SetSetting writes a settings key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// GetSetting reads a settings key. The bool reports whether the key
// exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value.String, true, nil
}
