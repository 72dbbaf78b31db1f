// Package storage provides abstractions for persistent kameti state.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/kameti/internal/models"
)

var (
	// ErrNotFound is wrapped by lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a group was modified since it was read.
	ErrVersionConflict = errors.New("group version conflict")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
)

// Directory is the member/user directory consumed by reconciliation.
// Lookups return nil, nil when no user matches.
type Directory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Queries are the operations available both on the store and inside a
// transaction. Every engine unit of work runs against the transactional
// Queries handed to WithinTx.
type Queries interface {
	Directory

	// GetGroup loads the group header and its members in join order.
	// Returns an error wrapping ErrNotFound if the group does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// SaveGroup writes the header and upserts every member, guarded by a
	// compare-and-swap on group.Version. On success group.Version is
	// incremented. Returns ErrVersionConflict if the stored version moved.
	SaveGroup(ctx context.Context, group *models.Group) error

	// GetPaymentByTransactionID returns nil, nil if the transaction is unknown.
	GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)

	// CreatePayment inserts a completed payment. Returns an error wrapping
	// ErrDuplicate if the transaction ID was already recorded.
	CreatePayment(ctx context.Context, payment *models.Payment) error

	// GetPaymentRecord returns nil, nil if no record exists for the member and round.
	GetPaymentRecord(ctx context.Context, groupID, userID string, round int) (*models.PaymentRecord, error)

	// UpsertPaymentRecord inserts or updates the record for (group, user, round).
	UpsertPaymentRecord(ctx context.Context, record *models.PaymentRecord) error

	// ListPaymentRecords returns a group's records; round 0 returns all rounds.
	ListPaymentRecords(ctx context.Context, groupID string, round int) ([]*models.PaymentRecord, error)

	// CreatePayout appends a payout. Returns an error wrapping ErrDuplicate
	// if the round was already disbursed.
	CreatePayout(ctx context.Context, payout *models.Payout) error

	// ListPayoutsByGroup returns payouts ordered by round.
	ListPayoutsByGroup(ctx context.Context, groupID string) ([]*models.Payout, error)
}

// Store defines the interface for kameti storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the engine or service layer.
type Store interface {
	Queries

	// CreateGroup persists a new group with its initial members.
	// The group.ID field will be populated by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// ListGroups returns all groups without members.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// CreateUser adds a directory entry.
	CreateUser(ctx context.Context, user *models.User) error

	// WithinTx runs fn in one serialized transaction. Nothing fn writes is
	// visible unless fn returns nil and the commit succeeds.
	WithinTx(ctx context.Context, fn func(q Queries) error) error

	// Close releases any resources held by the store.
	Close() error
}
