package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/store"
)

// suggestionColumns is the ordered list of columns selected in suggestion
// queries. Must match the scan order in scanSuggestion.
const suggestionColumns = `id, name_en, name_lv, level, parent_tag_ids, submitter_id, status,
	moderator_id, moderated_at, moderator_notes, merged_into_tag_id, created_tag_id,
	created_at, updated_at`

// scanSuggestion scans a sql.Row (or sql.Rows) into a domain.TagSuggestion.
func scanSuggestion(sc scanner) (*domain.TagSuggestion, error) {
	var s domain.TagSuggestion

	var (
		parentsJSON  string
		status       string
		moderatorID  sql.NullString
		moderatedAt  sql.NullString
		mergedInto   sql.NullString
		createdTagID sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := sc.Scan(
		&s.ID,
		&s.NameEn,
		&s.NameLv,
		&s.Level,
		&parentsJSON,
		&s.SubmitterID,
		&status,
		&moderatorID,
		&moderatedAt,
		&s.ModeratorNotes,
		&mergedInto,
		&createdTagID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(parentsJSON), &s.ParentTagIDs); err != nil {
		return nil, fmt.Errorf("unmarshal parent_tag_ids: %w", err)
	}
	if s.ParentTagIDs == nil {
		s.ParentTagIDs = []string{}
	}

	s.Status = domain.SuggestionStatus(status)
	s.ModeratorID = moderatorID.String
	s.MergedIntoID = mergedInto.String
	s.CreatedTagID = createdTagID.String

	if s.ModeratedAt, err = parseNullableTime(moderatedAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &s, nil
}

// GetSuggestion retrieves a suggestion by ID.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetSuggestion(ctx context.Context, suggestionID string) (*domain.TagSuggestion, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+suggestionColumns+` FROM tag_suggestions WHERE id = ?`, suggestionID)

	sug, err := scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return sug, nil
}

// FindSuggestions returns one page of suggestions, newest first, and the
// total number matching the filter.
func (s *Store) FindSuggestions(ctx context.Context, f store.SuggestionFilter) ([]*domain.TagSuggestion, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.SubmitterID != "" {
		where = append(where, "submitter_id = ?")
		args = append(args, f.SubmitterID)
	}

	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tag_suggestions`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suggestions: %w", err)
	}

	query := `SELECT ` + suggestionColumns + ` FROM tag_suggestions` + cond +
		` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := []*domain.TagSuggestion{}
	for rows.Next() {
		sug, err := scanSuggestion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, sug)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, total, nil
}

// FindPendingSuggestionByName returns a PENDING suggestion whose English or
// Latvian name has the same NameKey as one of names.
// Returns store.ErrNotFound if none match.
func (s *Store) FindPendingSuggestionByName(ctx context.Context, names ...string) (*domain.TagSuggestion, error) {
	keys := nameKeys(names)
	if len(keys) == 0 {
		return nil, store.ErrNotFound
	}

	in, args := inClause(keys)
	query := `SELECT ` + suggestionColumns + ` FROM tag_suggestions
		WHERE status = 'PENDING' AND (name_en_key IN (` + in + `) OR name_lv_key IN (` + in + `))
		ORDER BY created_at LIMIT 1`

	sug, err := scanSuggestion(s.q.QueryRowContext(ctx, query, append(args, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pending suggestion: %w", err)
	}
	return sug, nil
}

// CreateSuggestion inserts a new suggestion.
func (s *Store) CreateSuggestion(ctx context.Context, sug *domain.TagSuggestion) error {
	parents := sug.ParentTagIDs
	if parents == nil {
		parents = []string{}
	}
	parentsJSON, err := json.Marshal(parents)
	if err != nil {
		return fmt.Errorf("marshal parent_tag_ids: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO tag_suggestions (
			id, name_en, name_en_key, name_lv, name_lv_key, level, parent_tag_ids,
			submitter_id, status, moderator_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		sug.ID,
		sug.NameEn,
		domain.NameKey(sug.NameEn),
		sug.NameLv,
		domain.NameKey(sug.NameLv),
		int(sug.Level),
		string(parentsJSON),
		sug.SubmitterID,
		string(sug.Status),
		formatTime(sug.CreatedAt),
		formatTime(sug.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrNotFound.WithCause(err)
		}
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

// ResolveSuggestion applies res to a PENDING suggestion. The status check
// is part of the UPDATE, so two concurrent resolutions cannot both succeed.
// Returns store.ErrNotFound if the suggestion does not exist and
// store.ErrNotPending if it was already resolved.
func (s *Store) ResolveSuggestion(ctx context.Context, suggestionID string, res domain.Resolution) error {
	moderatedAt := formatTime(res.ModeratedAt)

	result, err := s.q.ExecContext(ctx, `
		UPDATE tag_suggestions SET
			status = ?,
			moderator_id = ?,
			moderated_at = ?,
			moderator_notes = ?,
			merged_into_tag_id = ?,
			created_tag_id = ?,
			updated_at = ?
		WHERE id = ? AND status = 'PENDING'`,
		string(res.Status),
		nullString(res.ModeratorID),
		moderatedAt,
		res.ModeratorNotes,
		nullString(res.MergedIntoID),
		nullString(res.CreatedTagID),
		moderatedAt,
		suggestionID,
	)
	if err != nil {
		return fmt.Errorf("resolve suggestion: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Distinguish a missing row from one that is no longer pending.
	if _, err := s.GetSuggestion(ctx, suggestionID); err != nil {
		return err
	}
	return store.ErrNotPending
}
