package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/store"
)

const tagParentColumns = `tp.id, tp.tag_id, tp.parent_id, tp.is_primary,
	tp.l1_category, tp.l1_color_key, tp.created_at`

// scanTagParent scans a link row followed by its parent tag columns.
func scanTagParent(sc scanner) (*domain.TagParent, error) {
	var (
		link      domain.TagParent
		isPrimary int
		createdAt string

		parent          domain.Tag
		parentParentID  sql.NullString
		parentStatus    string
		parentCreatedAt string
		parentUpdatedAt string
	)

	err := sc.Scan(
		&link.ID,
		&link.TagID,
		&link.ParentID,
		&isPrimary,
		&link.L1Category,
		&link.L1ColorKey,
		&createdAt,

		&parent.ID,
		&parent.Name,
		&parent.NameLv,
		&parent.Slug,
		&parent.Level,
		&parentParentID,
		&parentStatus,
		&parent.ColorKey,
		&parent.Icon,
		&parent.Description,
		&parentCreatedAt,
		&parentUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.IsPrimary = isPrimary == 1
	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	parent.ParentID = parentParentID.String
	parent.Status = domain.TagStatus(parentStatus)
	if parent.CreatedAt, err = parseTime(parentCreatedAt); err != nil {
		return nil, err
	}
	if parent.UpdatedAt, err = parseTime(parentUpdatedAt); err != nil {
		return nil, err
	}
	link.Parent = &parent

	return &link, nil
}

// FindTagParents returns links matching the filter, each with its parent
// tag resolved. Primary links sort before secondary ones.
func (s *Store) FindTagParents(ctx context.Context, f store.TagParentFilter) ([]*domain.TagParent, error) {
	var (
		where []string
		args  []any
	)

	if len(f.TagIDs) > 0 {
		in, inArgs := inClause(f.TagIDs)
		where = append(where, "tp.tag_id IN ("+in+")")
		args = append(args, inArgs...)
	}
	if f.ParentID != "" {
		where = append(where, "tp.parent_id = ?")
		args = append(args, f.ParentID)
	}
	if f.PrimaryOnly {
		where = append(where, "tp.is_primary = 1")
	}

	query := `SELECT ` + tagParentColumns + `, ` + tagColumns("p") + `
		FROM tag_parents tp
		JOIN tags p ON p.id = tp.parent_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY tp.tag_id, tp.is_primary DESC, tp.created_at`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find tag parents: %w", err)
	}
	defer rows.Close()

	links := []*domain.TagParent{}
	for rows.Next() {
		link, err := scanTagParent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag parent: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag parents: %w", err)
	}
	return links, nil
}

// AddTagParent inserts a parent link, copying the category fields from
// the parent's level-1 ancestor.
// Returns store.ErrAlreadyExists if the link (or a second primary) exists,
// and store.ErrNotFound if either tag does not exist.
func (s *Store) AddTagParent(ctx context.Context, link *domain.TagParent) error {
	return s.insertTagParent(ctx, link)
}

func (s *Store) insertTagParent(ctx context.Context, link *domain.TagParent) error {
	l1Name, l1Color, err := s.categoryOf(ctx, link.ParentID)
	if err != nil {
		return err
	}
	link.L1Category = l1Name
	link.L1ColorKey = l1Color

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO tag_parents (id, tag_id, parent_id, is_primary, l1_category, l1_color_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID,
		link.TagID,
		link.ParentID,
		boolToInt(link.IsPrimary),
		link.L1Category,
		link.L1ColorKey,
		formatTime(link.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrNotFound.WithCause(err)
		}
		return fmt.Errorf("insert tag parent: %w", err)
	}
	return nil
}

// categoryOf returns the name and color of the level-1 ancestor of tagID,
// which is the tag itself for categories. Empty when the chain is broken.
func (s *Store) categoryOf(ctx context.Context, tagID string) (string, string, error) {
	var (
		level       int
		name, color string
		gpName      sql.NullString
		gpColor     sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT p.level, p.name, p.color_key, gp.name, gp.color_key
		FROM tags p
		LEFT JOIN tags gp ON gp.id = p.parent_id AND gp.level = 1
		WHERE p.id = ?`, tagID).Scan(&level, &name, &color, &gpName, &gpColor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", store.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve category: %w", err)
	}

	if domain.TagLevel(level) == domain.LevelCategory {
		return name, color, nil
	}
	return gpName.String, gpColor.String, nil
}
