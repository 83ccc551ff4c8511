package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/thinkscotty/civicwire/internal/models"
)

var (
	ErrDuplicateUser = errors.New("username already taken")
	// ErrSetupDone is returned by CreateFirstUser once any user exists.
	ErrSetupDone = errors.New("setup already completed")
)

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(username string) (models.User, error) {
	var u models.User
	var createdAt string
	err := db.conn.QueryRow(
		`SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.CreatedAt, _ = parseTime(createdAt)
	return u, nil
}

// CreateUser inserts a new user record.
func (db *DB) CreateUser(u *models.User) error {
	u.ID = uuid.NewString()
	_, err := db.conn.Exec(
		`INSERT INTO users (id, username, password_hash, is_admin) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, boolToInt(u.IsAdmin),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateFirstUser inserts u only while the users table is empty. The check
// and the insert are one statement, so concurrent callers cannot both win.
func (db *DB) CreateFirstUser(u *models.User) error {
	u.ID = uuid.NewString()
	result, err := db.conn.Exec(`
		INSERT INTO users (id, username, password_hash, is_admin)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM users)`,
		u.ID, u.Username, u.PasswordHash, boolToInt(u.IsAdmin),
	)
	if err != nil {
		return fmt.Errorf("create first user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create first user: %w", err)
	}
	if n == 0 {
		return ErrSetupDone
	}
	return nil
}

// CreateSession inserts a new session record.
func (db *DB) CreateSession(sess *models.Session) error {
	_, err := db.conn.Exec(
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		sess.Token, sess.UserID, formatTime(sess.ExpiresAt),
	)
	return err
}

// SessionUser returns the user owning a non-expired session token.
func (db *DB) SessionUser(token string) (models.User, error) {
	var u models.User
	var createdAt string
	err := db.conn.QueryRow(`
		SELECT u.id, u.username, u.password_hash, u.is_admin, u.created_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, formatTime(timeNow()),
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.CreatedAt, _ = parseTime(createdAt)
	return u, nil
}

// DeleteSession removes a specific session (for logout).
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (db *DB) DeleteExpiredSessions() (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, formatTime(timeNow()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
