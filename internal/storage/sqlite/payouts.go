package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/storage"
)

// CreatePayout appends a payout to the ledger. A second payout for the same
// group and round is rejected by the UNIQUE (group_id, round) index.
func (q *queries) CreatePayout(ctx context.Context, payout *models.Payout) error {
	// Generate ID if not set
	if payout.ID == "" {
		payout.ID = uuid.New().String()
	}
	if payout.CreatedAt.IsZero() {
		payout.CreatedAt = time.Now().UTC()
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO payouts (id, group_id, round, recipient_id, amount, status, processed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payout.ID, payout.GroupID, payout.Round, payout.RecipientID,
		payout.Amount, payout.Status, payout.ProcessedBy, toMillis(payout.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("round %d of group %s already disbursed: %w", payout.Round, payout.GroupID, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert payout: %w", err)
	}

	return nil
}

// ListPayoutsByGroup retrieves all payouts for a group in round order.
func (q *queries) ListPayoutsByGroup(ctx context.Context, groupID string) ([]*models.Payout, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, group_id, round, recipient_id, amount, status, processed_by, created_at
		 FROM payouts WHERE group_id = ? ORDER BY round`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts by group: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		payout := &models.Payout{}
		var createdAt int64

		if err := rows.Scan(&payout.ID, &payout.GroupID, &payout.Round, &payout.RecipientID,
			&payout.Amount, &payout.Status, &payout.ProcessedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payout.CreatedAt = fromMillis(createdAt)

		payouts = append(payouts, payout)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}

	return payouts, nil
}
