package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/store"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, email, password_hash, display_name, role,
	pending_suggestion_count, created_at, updated_at, last_login_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(sc scanner) (*domain.User, error) {
	var u domain.User

	var (
		role        string
		createdAt   string
		updatedAt   string
		lastLoginAt sql.NullString
	)

	err := sc.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&role,
		&u.PendingSuggestionCount,
		&createdAt,
		&updatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	lastLogin, err := parseNullableTime(lastLoginAt)
	if err != nil {
		return nil, err
	}
	if lastLogin != nil {
		u.LastLoginAt = *lastLogin
	}

	return &u, nil
}

// CreateUser inserts a new user into the database.
// Returns store.ErrAlreadyExists if the user ID or email already exists.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	emailLower := strings.ToLower(strings.TrimSpace(user.Email))

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (
			id, email, email_lower, password_hash, display_name, role,
			pending_suggestion_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		emailLower,
		user.PasswordHash,
		user.DisplayName,
		string(user.Role),
		user.PendingSuggestionCount,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
// Returns store.ErrNotFound if the user does not exist.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, userID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
// Returns store.ErrNotFound if no user has that email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_lower = ?`,
		strings.ToLower(strings.TrimSpace(email)))

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	ts := formatTime(at)
	return s.execOne(ctx, `UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`, ts, ts, userID)
}

// IncrementPendingCount adds one to the user's pending suggestion count
// unless it already reached limit.
// Returns store.ErrNotFound for an unknown user and store.ErrQuotaExceeded
// when the user is at the limit.
func (s *Store) IncrementPendingCount(ctx context.Context, userID string, limit int) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET pending_suggestion_count = pending_suggestion_count + 1, updated_at = ?
		WHERE id = ? AND pending_suggestion_count < ?`,
		formatTime(time.Now()), userID, limit)
	if err != nil {
		return fmt.Errorf("increment pending count: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	return store.ErrQuotaExceeded
}

// DecrementPendingCount subtracts one from the user's pending suggestion
// count, never going below zero. It reports false when the count was
// already zero, and returns store.ErrNotFound for an unknown user.
func (s *Store) DecrementPendingCount(ctx context.Context, userID string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET pending_suggestion_count = pending_suggestion_count - 1, updated_at = ?
		WHERE id = ? AND pending_suggestion_count > 0`,
		formatTime(time.Now()), userID)
	if err != nil {
		return false, fmt.Errorf("decrement pending count: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

// CountPendingByUser counts PENDING suggestions per submitter.
// Users without pending suggestions are absent from the map.
func (s *Store) CountPendingByUser(ctx context.Context) (map[string]int, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT submitter_id, COUNT(*) FROM tag_suggestions
		WHERE status = 'PENDING'
		GROUP BY submitter_id`)
	if err != nil {
		return nil, fmt.Errorf("count pending suggestions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			userID string
			n      int
		)
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, fmt.Errorf("scan pending count: %w", err)
		}
		counts[userID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending counts: %w", err)
	}
	return counts, nil
}

// SetPendingCount overwrites the user's pending suggestion count.
// Only used by reconciliation.
func (s *Store) SetPendingCount(ctx context.Context, userID string, count int) error {
	return s.execOne(ctx,
		`UPDATE users SET pending_suggestion_count = ?, updated_at = ? WHERE id = ?`,
		count, formatTime(time.Now()), userID)
}

// execOne runs an UPDATE that must touch exactly one row.
// Returns store.ErrNotFound if it touched none.
func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
