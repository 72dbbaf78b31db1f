package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/storage"
)

const groupColumns = `id, name, created_by, amount, total_members, current_round, total_rounds,
	payout_order, count_policy_kind, count_policy_value, status, frequency, start_date, version, created_at`

// CreateGroup persists a new group and its initial members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate IDs if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	if group.Version == 0 {
		group.Version = 1
	}
	if group.CountPolicy.Kind == "" {
		group.CountPolicy = models.StrictPolicy()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.CreatedBy, group.Amount, group.TotalMembers, group.CurrentRound,
		group.TotalRounds, string(group.PayoutOrder), string(group.CountPolicy.Kind), group.CountPolicy.Value,
		string(group.Status), string(group.Frequency), toMillis(group.StartDate), group.Version,
		toMillis(group.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	q := &queries{db: tx}
	for i := range group.Members {
		if err := q.upsertMember(ctx, group.ID, &group.Members[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including its members in join order.
func (q *queries) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := scanGroup(q.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, groupID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group not found: %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT user_id, position, payment_status, last_payment_ref, has_received_payout, payout_round, joined_at
		 FROM group_members WHERE group_id = ? ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m        models.Member
			status   string
			received int
			joinedAt int64
		)
		if err := rows.Scan(&m.UserID, &m.Position, &status, &m.LastPaymentRef, &received, &m.PayoutRound, &joinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.PaymentStatus = models.PaymentStatus(status)
		m.HasReceivedPayout = received != 0
		m.JoinedAt = fromMillis(joinedAt)
		group.Members = append(group.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return group, nil
}

// ListGroups retrieves all group headers, newest first.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// SaveGroup writes the group header with a version compare-and-swap and
// upserts every member. Members are never deleted.
func (q *queries) SaveGroup(ctx context.Context, group *models.Group) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE groups SET name = ?, current_round = ?, total_rounds = ?, payout_order = ?,
		 count_policy_kind = ?, count_policy_value = ?, status = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		group.Name, group.CurrentRound, group.TotalRounds, string(group.PayoutOrder),
		string(group.CountPolicy.Kind), group.CountPolicy.Value, string(group.Status),
		group.ID, group.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check group update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("group %s at version %d: %w", group.ID, group.Version, storage.ErrVersionConflict)
	}

	for i := range group.Members {
		if err := q.upsertMember(ctx, group.ID, &group.Members[i]); err != nil {
			return err
		}
	}

	group.Version++
	return nil
}

func (q *queries) upsertMember(ctx context.Context, groupID string, m *models.Member) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if m.PaymentStatus == "" {
		m.PaymentStatus = models.PaymentStatusUnpaid
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, position, payment_status, last_payment_ref,
		     has_received_payout, payout_round, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET
		     payment_status = excluded.payment_status,
		     last_payment_ref = excluded.last_payment_ref,
		     has_received_payout = excluded.has_received_payout,
		     payout_round = excluded.payout_round`,
		groupID, m.UserID, m.Position, string(m.PaymentStatus), m.LastPaymentRef,
		boolToInt(m.HasReceivedPayout), m.PayoutRound, toMillis(m.JoinedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member position %d taken: %w", m.Position, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.Group, error) {
	var (
		g                               models.Group
		order, policyKind, status, freq string
		startDate, createdAt            int64
	)
	err := row.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.Amount, &g.TotalMembers, &g.CurrentRound, &g.TotalRounds,
		&order, &policyKind, &g.CountPolicy.Value, &status, &freq, &startDate, &g.Version, &createdAt)
	if err != nil {
		return nil, err
	}
	g.PayoutOrder = models.PayoutOrder(order)
	g.CountPolicy.Kind = models.CountPolicyKind(policyKind)
	g.Status = models.GroupStatus(status)
	g.Frequency = models.Frequency(freq)
	g.StartDate = fromMillis(startDate)
	g.CreatedAt = fromMillis(createdAt)
	return &g, nil
}
