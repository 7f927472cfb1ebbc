package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/id"
	"github.com/kopa-app/kopa-server/internal/store"
)

// tagColumns returns the ordered columns selected in tag queries,
// qualified with alias when non-empty. Must match the scan order in scanTag.
func tagColumns(alias string) string {
	cols := []string{
		"id", "name", "name_lv", "slug", "level", "parent_id", "status",
		"color_key", "icon", "description", "created_at", "updated_at",
	}
	if alias != "" {
		for i, c := range cols {
			cols[i] = alias + "." + c
		}
	}
	return strings.Join(cols, ", ")
}

// scanTag scans a sql.Row (or sql.Rows via its Scan method) into a domain.Tag.
func scanTag(sc scanner) (*domain.Tag, error) {
	var t domain.Tag

	var (
		parentID  sql.NullString
		status    string
		createdAt string
		updatedAt string
	)

	err := sc.Scan(
		&t.ID,
		&t.Name,
		&t.NameLv,
		&t.Slug,
		&t.Level,
		&parentID,
		&status,
		&t.ColorKey,
		&t.Icon,
		&t.Description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ParentID = parentID.String
	t.Status = domain.TagStatus(status)

	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (s *Store) queryTags(ctx context.Context, query string, args ...any) ([]*domain.Tag, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// GetTag retrieves a tag by its ID.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+tagColumns("")+` FROM tags WHERE id = ?`, tagID)

	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

// FindTags returns tags matching the filter, ordered by name.
// With a NameHint, tags whose English or Latvian name contains the hint
// sort first.
func (s *Store) FindTags(ctx context.Context, f store.TagFilter) ([]*domain.Tag, error) {
	var (
		where []string
		args  []any
	)

	if len(f.IDs) > 0 {
		in, inArgs := inClause(f.IDs)
		where = append(where, "id IN ("+in+")")
		args = append(args, inArgs...)
	}
	if f.Level != 0 {
		where = append(where, "level = ?")
		args = append(args, int(f.Level))
	}
	if f.ParentID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, f.ParentID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + tagColumns("") + ` FROM tags`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	if hint := domain.NameKey(f.NameHint); hint != "" {
		query += ` ORDER BY CASE WHEN instr(name_key, ?) > 0 OR instr(name_lv_key, ?) > 0 THEN 0 ELSE 1 END, name_key, id`
		args = append(args, hint, hint)
	} else {
		query += ` ORDER BY name_key, id`
	}

	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	tags, err := s.queryTags(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	return tags, nil
}

// FindActiveTagByName returns the first ACTIVE tag whose name or Latvian
// name has the same NameKey as one of names.
// Returns store.ErrNotFound if none match.
func (s *Store) FindActiveTagByName(ctx context.Context, names ...string) (*domain.Tag, error) {
	keys := nameKeys(names)
	if len(keys) == 0 {
		return nil, store.ErrNotFound
	}

	in, args := inClause(keys)
	query := `SELECT ` + tagColumns("") + ` FROM tags
		WHERE status = 'ACTIVE' AND (name_key IN (` + in + `) OR name_lv_key IN (` + in + `))
		ORDER BY level, name_key LIMIT 1`

	row := s.q.QueryRowContext(ctx, query, append(args, args...)...)
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tag by name: %w", err)
	}
	return t, nil
}

// nameKeys folds names and drops empty ones.
func nameKeys(names []string) []string {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		if k := domain.NameKey(n); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// CreateTag inserts a new tag. When the tag has a parent, the primary
// TagParent row is written in the same transaction.
// Returns store.ErrAlreadyExists on duplicate slug and store.ErrNotFound
// if the parent does not exist.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	return s.withTx(ctx, func(tx *Store) error {
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO tags (
				id, name, name_key, name_lv, name_lv_key, slug, level, parent_id,
				status, color_key, icon, description, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID,
			t.Name,
			domain.NameKey(t.Name),
			t.NameLv,
			domain.NameKey(t.NameLv),
			t.Slug,
			int(t.Level),
			nullString(t.ParentID),
			string(t.Status),
			t.ColorKey,
			t.Icon,
			t.Description,
			formatTime(t.CreatedAt),
			formatTime(t.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists.WithCause(err)
			}
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return store.ErrNotFound.WithCause(err)
			}
			return fmt.Errorf("insert tag: %w", err)
		}

		if t.ParentID == "" {
			return nil
		}

		linkID, err := id.Generate(id.PrefixTagParent)
		if err != nil {
			return fmt.Errorf("generate tag parent id: %w", err)
		}
		return tx.insertTagParent(ctx, &domain.TagParent{
			ID:        linkID,
			TagID:     t.ID,
			ParentID:  t.ParentID,
			IsPrimary: true,
			CreatedAt: t.CreatedAt,
		})
	})
}

// UpdateTag saves a tag's names and display fields.
// Level and parent are fixed at creation.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE tags SET
			name = ?, name_key = ?, name_lv = ?, name_lv_key = ?, slug = ?,
			status = ?, color_key = ?, icon = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		t.Name,
		domain.NameKey(t.Name),
		t.NameLv,
		domain.NameKey(t.NameLv),
		t.Slug,
		string(t.Status),
		t.ColorKey,
		t.Icon,
		t.Description,
		formatTime(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("update tag: %w", err)
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
