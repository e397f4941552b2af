package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// Stats computes the aggregate snapshot for a user. Every number is derived
// from the records table at read time; nothing here is incremented, so the
// counts cannot drift from the records they describe.
func (s *SQLiteStorage) Stats(ctx context.Context, userID string) (*model.StatsSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	snapshot := &model.StatsSnapshot{
		ByStatus:   make(map[model.Status]int),
		ByCategory: make(map[model.Category]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM records WHERE user_id = ? GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to aggregate by status: %v", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan status count: %v", common.ErrPersistence, scanErr)
		}
		snapshot.ByStatus[model.Status(status)] = count
		snapshot.TotalProcessed += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate status counts: %v", common.ErrPersistence, err)
	}

	catRows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM records
		WHERE user_id = ? AND category != '' GROUP BY category
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to aggregate by category: %v", common.ErrPersistence, err)
	}
	defer func() { _ = catRows.Close() }()

	for catRows.Next() {
		var category string
		var count int
		if scanErr := catRows.Scan(&category, &count); scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan category count: %v", common.ErrPersistence, scanErr)
		}
		snapshot.ByCategory[model.Category(category)] = count
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate category counts: %v", common.ErrPersistence, err)
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE user_id = ? AND created_at >= ?
	`, userID, midnight).Scan(&snapshot.ProcessedToday); err != nil {
		return nil, fmt.Errorf("%w: failed to count today's records: %v", common.ErrPersistence, err)
	}

	snapshot.PendingApprovals = snapshot.ByStatus[model.StatusPendingApproval]
	return snapshot, nil
}
