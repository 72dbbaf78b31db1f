package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/lifecycle"
	"github.com/mmynk/kameti/internal/metrics"
	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/notify"
	"github.com/mmynk/kameti/internal/rounds"
	"github.com/mmynk/kameti/internal/storage"
)

// errLostRace marks a transaction ID inserted by a concurrent reconcile
// between our lookup and our insert.
var errLostRace = errors.New("transaction recorded concurrently")

// ReconcileResult is the outcome of one payment completion event.
type ReconcileResult struct {
	Payment *models.Payment
	Record  *models.PaymentRecord

	// Duplicate is true when the transaction was already reconciled and
	// nothing was written.
	Duplicate bool

	// Readiness of the paid round right after the payment was applied.
	// Nil for duplicates.
	Readiness *rounds.Readiness
}

// Reconciler turns payment completion events into durable contribution state.
type Reconciler struct {
	store storage.Store
	deps
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store storage.Store, opts ...Option) *Reconciler {
	return &Reconciler{store: store, deps: newDeps(opts)}
}

// Reconcile applies event exactly once. Replaying a known transaction ID
// returns the original payment with Duplicate set.
func (r *Reconciler) Reconcile(ctx context.Context, event models.PaymentEvent) (result *ReconcileResult, err error) {
	ctx, span := tracer.Start(ctx, "Reconciler.Reconcile", trace.WithAttributes(
		attribute.String("kameti.transaction_id", event.TransactionID),
		attribute.String("kameti.group_id", event.GroupRef),
		attribute.String("kameti.source", string(event.Source)),
	))
	defer func() { endSpan(span, err) }()

	if event.Source == "" {
		event.Source = models.PaymentSourceGateway
	}
	source := string(event.Source)

	if err := validateEvent(event); err != nil {
		r.metrics.ObserveReconcile(metrics.ResultRejected, source)
		return nil, err
	}

	var group *models.Group
	err = r.store.WithinTx(ctx, func(q storage.Queries) error {
		res, g, err := r.apply(ctx, q, event)
		if err != nil {
			return err
		}
		result, group = res, g
		return nil
	})
	if errors.Is(err, errLostRace) {
		result, err = r.duplicate(ctx, r.store, event.TransactionID)
	}
	if err != nil {
		r.metrics.ObserveReconcile(metrics.ResultRejected, source)
		return nil, storageError(err, "failed to reconcile payment")
	}

	if result.Duplicate {
		r.metrics.ObserveReconcile(metrics.ResultDuplicate, source)
		slog.InfoContext(ctx, "Duplicate payment event ignored",
			"transaction_id", event.TransactionID, "payment_id", result.Payment.ID)
		return result, nil
	}

	r.metrics.ObserveReconcile(metrics.ResultCreated, source)
	r.notifyAll(ctx, notify.Message{
		Kind:    notify.KindPaymentReceived,
		GroupID: group.ID,
		UserID:  result.Payment.UserID,
		Round:   result.Payment.Round,
		Amount:  result.Payment.Amount,
		Text:    fmt.Sprintf("Payment for round %d of %s received. %s", result.Payment.Round, group.Name, result.Readiness.Reason),
		Data:    map[string]string{"transaction_id": result.Payment.TransactionID},
	})
	return result, nil
}

func validateEvent(event models.PaymentEvent) error {
	switch {
	case event.TransactionID == "":
		return apperrors.New(apperrors.CodeInvalidArgument, "transaction id is required")
	case event.PayerIdentity == "":
		return apperrors.New(apperrors.CodeInvalidArgument, "payer identity is required")
	case event.GroupRef == "":
		return apperrors.New(apperrors.CodeInvalidArgument, "group reference is required")
	case event.Amount <= 0:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "amount must be positive, got %d", event.Amount)
	case event.Round < 0:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "invalid round %d", event.Round)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, q storage.Queries, event models.PaymentEvent) (*ReconcileResult, *models.Group, error) {
	existing, err := q.GetPaymentByTransactionID(ctx, event.TransactionID)
	if err != nil {
		return nil, nil, storageError(err, "failed to look up transaction")
	}
	if existing != nil {
		res, err := r.duplicate(ctx, q, event.TransactionID)
		return res, nil, err
	}

	user, err := resolvePayer(ctx, q, event.PayerIdentity)
	if err != nil {
		return nil, nil, err
	}

	group, err := loadGroup(ctx, q, event.GroupRef)
	if err != nil {
		return nil, nil, err
	}
	if err := lifecycle.RequireAcceptingPayments(group); err != nil {
		return nil, nil, err
	}

	member, ok := group.Member(user.ID)
	if !ok {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("%s is not a member of kameti %s", event.PayerIdentity, group.ID),
			map[string]string{"group_id": group.ID, "user_id": user.ID},
		)
	}

	round := event.Round
	if round == 0 {
		round = group.CurrentRound
	}
	if round != group.CurrentRound {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeConflict,
			fmt.Sprintf("payment is for round %d but the current round is %d", round, group.CurrentRound),
			map[string]string{"group_id": group.ID, "round": fmt.Sprint(round)},
		)
	}
	if want := group.EffectiveAmount(); event.Amount != want {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeConflict,
			fmt.Sprintf("payment of %d does not match the contribution of %d", event.Amount, want),
			map[string]string{"group_id": group.ID, "transaction_id": event.TransactionID},
		)
	}
	if member.PaymentStatus == models.PaymentStatusPaid {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeConflict,
			fmt.Sprintf("member already paid round %d under transaction %s", round, member.LastPaymentRef),
			map[string]string{"group_id": group.ID, "user_id": user.ID},
		)
	}

	if group.Status == models.GroupStatusPending {
		if err := lifecycle.Activate(group); err != nil {
			return nil, nil, err
		}
	}

	paidAt := event.OccurredAt
	if paidAt.IsZero() {
		paidAt = r.now()
	}

	payment := &models.Payment{
		ID:             uuid.New().String(),
		TransactionID:  event.TransactionID,
		GroupID:        group.ID,
		UserID:         user.ID,
		Round:          round,
		Amount:         event.Amount,
		Method:         event.Method,
		Source:         event.Source,
		Status:         models.PaymentStatusCompleted,
		GatewayPayload: event.GatewayPayload,
		CreatedAt:      r.now(),
	}
	if err := q.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, nil, errLostRace
		}
		return nil, nil, storageError(err, "failed to record payment")
	}

	record, err := q.GetPaymentRecord(ctx, group.ID, user.ID, round)
	if err != nil {
		return nil, nil, storageError(err, "failed to load payment record")
	}
	if record == nil {
		record = &models.PaymentRecord{
			ID:      uuid.New().String(),
			GroupID: group.ID,
			UserID:  user.ID,
			Round:   round,
			Status:  models.RecordStatusPending,
			DueDate: dueDate(group, round),
		}
	}
	record.Amount = event.Amount
	record.MarkPaid(payment.ID, paidAt)
	if err := q.UpsertPaymentRecord(ctx, record); err != nil {
		return nil, nil, storageError(err, "failed to record payment")
	}

	member.PaymentStatus = models.PaymentStatusPaid
	member.LastPaymentRef = event.TransactionID
	if err := q.SaveGroup(ctx, group); err != nil {
		return nil, nil, storageError(err, "failed to update kameti")
	}

	readiness := rounds.Evaluate(group, round)
	return &ReconcileResult{Payment: payment, Record: record, Readiness: &readiness}, group, nil
}

func (r *Reconciler) duplicate(ctx context.Context, q storage.Queries, transactionID string) (*ReconcileResult, error) {
	payment, err := q.GetPaymentByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, storageError(err, "failed to look up transaction")
	}
	if payment == nil {
		return nil, apperrors.Newf(apperrors.CodePersistenceFailure, "transaction %s vanished after a unique violation", transactionID)
	}
	record, err := q.GetPaymentRecord(ctx, payment.GroupID, payment.UserID, payment.Round)
	if err != nil {
		return nil, storageError(err, "failed to load payment record")
	}
	return &ReconcileResult{Payment: payment, Record: record, Duplicate: true}, nil
}

// resolvePayer looks the payer up by email when the identity looks like one,
// falling back to the user ID.
func resolvePayer(ctx context.Context, dir storage.Directory, identity string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if strings.Contains(identity, "@") {
		user, err = dir.GetUserByEmail(ctx, strings.ToLower(identity))
	} else {
		user, err = dir.GetUserByID(ctx, identity)
	}
	if err != nil {
		return nil, storageError(err, "failed to look up payer")
	}
	if user == nil {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("payer %s not found", identity),
			map[string]string{"payer": identity},
		)
	}
	return user, nil
}

// InitiatePayment opens the pending contribution record for the member's
// current round, with its due date. Calling it again returns the same record.
func (r *Reconciler) InitiatePayment(ctx context.Context, groupID, userID string) (record *models.PaymentRecord, err error) {
	ctx, span := tracer.Start(ctx, "Reconciler.InitiatePayment", trace.WithAttributes(
		attribute.String("kameti.group_id", groupID),
	))
	defer func() { endSpan(span, err) }()

	err = r.store.WithinTx(ctx, func(q storage.Queries) error {
		group, err := loadGroup(ctx, q, groupID)
		if err != nil {
			return err
		}
		if err := lifecycle.RequireAcceptingPayments(group); err != nil {
			return err
		}
		if _, ok := group.Member(userID); !ok {
			return apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("%s is not a member of kameti %s", userID, group.ID),
				map[string]string{"group_id": group.ID, "user_id": userID},
			)
		}

		existing, err := q.GetPaymentRecord(ctx, group.ID, userID, group.CurrentRound)
		if err != nil {
			return storageError(err, "failed to load payment record")
		}
		if existing != nil {
			record = existing
			return nil
		}

		record = &models.PaymentRecord{
			ID:      uuid.New().String(),
			GroupID: group.ID,
			UserID:  userID,
			Round:   group.CurrentRound,
			Amount:  group.EffectiveAmount(),
			Status:  models.RecordStatusPending,
			DueDate: dueDate(group, group.CurrentRound),
		}
		return storageError(q.UpsertPaymentRecord(ctx, record), "failed to create payment record")
	})
	if err != nil {
		return nil, storageError(err, "failed to initiate payment")
	}
	return record, nil
}
