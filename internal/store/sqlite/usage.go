package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// TagUsage returns the number of groups and events tagged with each tag.
// Tags without any usage are absent from the map.
func (s *Store) TagUsage(ctx context.Context) (map[string]domain.TagUsage, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT tag_id, SUM(group_count), SUM(event_count) FROM (
			SELECT tag_id, COUNT(*) AS group_count, 0 AS event_count FROM group_tags GROUP BY tag_id
			UNION ALL
			SELECT tag_id, 0 AS group_count, COUNT(*) AS event_count FROM event_tags GROUP BY tag_id
		)
		GROUP BY tag_id`)
	if err != nil {
		return nil, fmt.Errorf("query tag usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]domain.TagUsage)
	for rows.Next() {
		var (
			tagID string
			u     domain.TagUsage
		)
		if err := rows.Scan(&tagID, &u.Groups, &u.Events); err != nil {
			return nil, fmt.Errorf("scan tag usage: %w", err)
		}
		usage[tagID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag usage: %w", err)
	}
	return usage, nil
}

// SetGroupTags replaces all tags for a group in a single transaction.
func (s *Store) SetGroupTags(ctx context.Context, groupID string, tagIDs []string) error {
	return s.replaceTagLinks(ctx, "group_tags", "group_id", groupID, tagIDs)
}

// SetEventTags replaces all tags for an event in a single transaction.
func (s *Store) SetEventTags(ctx context.Context, eventID string, tagIDs []string) error {
	return s.replaceTagLinks(ctx, "event_tags", "event_id", eventID, tagIDs)
}

// replaceTagLinks deletes the owner's rows in table and inserts the new set.
// table and ownerColumn are constants from this package, never user input.
func (s *Store) replaceTagLinks(ctx context.Context, table, ownerColumn, ownerID string, tagIDs []string) error {
	return s.withTx(ctx, func(tx *Store) error {
		if _, err := tx.q.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE `+ownerColumn+` = ?`, ownerID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}

		now := formatTime(time.Now().UTC())
		for _, tagID := range tagIDs {
			_, err := tx.q.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+table+` (`+ownerColumn+`, tag_id, created_at) VALUES (?, ?, ?)`,
				ownerID, tagID, now)
			if err != nil {
				return fmt.Errorf("insert %s: %w", table, err)
			}
		}
		return nil
	})
}
