package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/storage"
)

// CreatePayment inserts a completed payment. The UNIQUE index on
// transaction_id rejects a second insert for the same transaction even when
// two deliveries race past the application-level lookup.
func (q *queries) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusCompleted
	}

	var payload any
	if len(payment.GatewayPayload) > 0 {
		payload = string(payment.GatewayPayload)
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO payments (id, transaction_id, group_id, user_id, round, amount, method, source, status,
		     gateway_payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.TransactionID, payment.GroupID, payment.UserID, payment.Round, payment.Amount,
		string(payment.Method), string(payment.Source), payment.Status, payload, toMillis(payment.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s already recorded: %w", payment.TransactionID, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPaymentByTransactionID retrieves a payment by its gateway transaction ID.
func (q *queries) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	payment := &models.Payment{}
	var (
		method, source string
		payload        sql.NullString
		createdAt      int64
	)

	err := q.db.QueryRowContext(ctx,
		`SELECT id, transaction_id, group_id, user_id, round, amount, method, source, status, gateway_payload, created_at
		 FROM payments WHERE transaction_id = ?`,
		transactionID,
	).Scan(&payment.ID, &payment.TransactionID, &payment.GroupID, &payment.UserID, &payment.Round,
		&payment.Amount, &method, &source, &payment.Status, &payload, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	payment.Method = models.PaymentMethod(method)
	payment.Source = models.PaymentSource(source)
	payment.CreatedAt = fromMillis(createdAt)
	if payload.Valid {
		payment.GatewayPayload = []byte(payload.String)
	}
	return payment, nil
}

const recordColumns = `id, group_id, user_id, round, amount, status, due_date, paid_at, is_late, days_late, payment_id`

// UpsertPaymentRecord inserts the record for (group, user, round) or updates
// the existing one in place.
func (q *queries) UpsertPaymentRecord(ctx context.Context, record *models.PaymentRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO payment_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (group_id, user_id, round) DO UPDATE SET
		     amount = excluded.amount,
		     status = excluded.status,
		     paid_at = excluded.paid_at,
		     is_late = excluded.is_late,
		     days_late = excluded.days_late,
		     payment_id = excluded.payment_id`,
		record.ID, record.GroupID, record.UserID, record.Round, record.Amount, string(record.Status),
		toMillis(record.DueDate), toMillis(record.PaidAt), boolToInt(record.IsLate), record.DaysLate,
		record.PaymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payment record: %w", err)
	}
	return nil
}

// GetPaymentRecord retrieves the record for one member and round.
func (q *queries) GetPaymentRecord(ctx context.Context, groupID, userID string, round int) (*models.PaymentRecord, error) {
	record, err := scanRecord(q.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM payment_records WHERE group_id = ? AND user_id = ? AND round = ?`,
		groupID, userID, round,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	return record, nil
}

// ListPaymentRecords retrieves a group's records ordered by round then due date.
func (q *queries) ListPaymentRecords(ctx context.Context, groupID string, round int) ([]*models.PaymentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM payment_records WHERE group_id = ?`
	args := []any{groupID}
	if round > 0 {
		query += ` AND round = ?`
		args = append(args, round)
	}
	query += ` ORDER BY round, user_id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment records: %w", err)
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment records: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (*models.PaymentRecord, error) {
	var (
		r               models.PaymentRecord
		status          string
		dueDate, paidAt int64
		isLate          int
	)
	err := row.Scan(&r.ID, &r.GroupID, &r.UserID, &r.Round, &r.Amount, &status,
		&dueDate, &paidAt, &isLate, &r.DaysLate, &r.PaymentID)
	if err != nil {
		return nil, err
	}
	r.Status = models.RecordStatus(status)
	r.DueDate = fromMillis(dueDate)
	r.PaidAt = fromMillis(paidAt)
	r.IsLate = isLate != 0
	return &r, nil
}
