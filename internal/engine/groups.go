package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/lifecycle"
	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/rounds"
	"github.com/mmynk/kameti/internal/storage"
)

// CreateGroupParams describes a new kameti.
type CreateGroupParams struct {
	Name         string
	OwnerID      string
	Amount       int64
	TotalMembers int
	PayoutOrder  models.PayoutOrder
	Frequency    models.Frequency
	StartDate    time.Time

	// OwnerJoins makes the owner the first member.
	OwnerJoins bool
}

// Groups administers kameti membership and lifecycle.
type Groups struct {
	store storage.Store
	deps
}

// NewGroups creates the group administration component.
func NewGroups(store storage.Store, opts ...Option) *Groups {
	return &Groups{store: store, deps: newDeps(opts)}
}

// CreateGroup validates params and persists a pending kameti.
func (s *Groups) CreateGroup(ctx context.Context, params CreateGroupParams) (*models.Group, error) {
	name := strings.TrimSpace(params.Name)
	switch {
	case name == "":
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "group name is required")
	case params.Amount <= 0:
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "contribution amount must be positive, got %d", params.Amount)
	case params.TotalMembers < 2:
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "a kameti needs at least 2 members, got %d", params.TotalMembers)
	}

	order := params.PayoutOrder
	if order == "" {
		order = models.PayoutOrderSequential
	}
	if !order.Valid() {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown payout order %q", order)
	}

	freq := params.Frequency
	switch freq {
	case "":
		freq = models.FrequencyMonthly
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown frequency %q", freq)
	}

	owner, err := s.store.GetUserByID(ctx, params.OwnerID)
	if err != nil {
		return nil, storageError(err, "failed to look up owner")
	}
	if owner == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "owner %s not found", params.OwnerID)
	}

	now := s.now()
	start := params.StartDate
	if start.IsZero() {
		start = now
	}

	group := &models.Group{
		Name:         name,
		CreatedBy:    owner.ID,
		Amount:       params.Amount,
		TotalMembers: params.TotalMembers,
		CurrentRound: 1,
		TotalRounds:  params.TotalMembers,
		PayoutOrder:  order,
		CountPolicy:  models.StrictPolicy(),
		Status:       models.GroupStatusPending,
		Frequency:    freq,
		StartDate:    start.UTC(),
		CreatedAt:    now,
	}
	if params.OwnerJoins {
		group.Members = []models.Member{{
			UserID:        owner.ID,
			Position:      1,
			PaymentStatus: models.PaymentStatusUnpaid,
			JoinedAt:      now,
		}}
	}

	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, storageError(err, "failed to create kameti")
	}
	slog.InfoContext(ctx, "Kameti created", "group_id", group.ID, "owner", owner.ID, "members", group.TotalMembers)
	return group, nil
}

// GetGroup loads a kameti with its members.
func (s *Groups) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return loadGroup(ctx, s.store, groupID)
}

// JoinGroup adds userID to a pending kameti. The capacity check and the
// insert share one transaction.
func (s *Groups) JoinGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	return s.mutate(ctx, "Groups.JoinGroup", groupID, func(ctx context.Context, q storage.Queries, g *models.Group) error {
		user, err := q.GetUserByID(ctx, userID)
		if err != nil {
			return storageError(err, "failed to look up user")
		}
		if user == nil {
			return apperrors.Newf(apperrors.CodeNotFound, "user %s not found", userID)
		}
		if g.Status != models.GroupStatusPending {
			return apperrors.Newf(apperrors.CodeConflict, "kameti is %s and no longer accepts members", g.Status)
		}
		if _, ok := g.Member(userID); ok {
			return apperrors.Newf(apperrors.CodeConflict, "%s is already a member", userID)
		}
		capacity := g.TotalMembers
		if g.CountPolicy.Kind == models.CountPolicyOverrideCount {
			capacity = g.EffectiveMemberCount()
		}
		if len(g.Members) >= capacity {
			return apperrors.WithMetadata(apperrors.CodeConflict,
				fmt.Sprintf("kameti is full: %d of %d members joined", len(g.Members), capacity),
				map[string]string{"group_id": g.ID},
			)
		}

		position := 1
		for _, m := range g.Members {
			if m.Position >= position {
				position = m.Position + 1
			}
		}
		g.Members = append(g.Members, models.Member{
			UserID:        user.ID,
			Position:      position,
			PaymentStatus: models.PaymentStatusUnpaid,
			JoinedAt:      s.now(),
		})
		return nil
	})
}

// ActivateGroup moves a pending kameti to active on the owner's request.
func (s *Groups) ActivateGroup(ctx context.Context, groupID, actor string) (*models.Group, error) {
	return s.mutate(ctx, "Groups.ActivateGroup", groupID, func(_ context.Context, _ storage.Queries, g *models.Group) error {
		if err := requireOwner(g, actor); err != nil {
			return err
		}
		return lifecycle.Activate(g)
	})
}

// CancelGroup ends a kameti administratively.
func (s *Groups) CancelGroup(ctx context.Context, groupID, actor string) (*models.Group, error) {
	return s.mutate(ctx, "Groups.CancelGroup", groupID, func(_ context.Context, _ storage.Queries, g *models.Group) error {
		if err := requireOwner(g, actor); err != nil {
			return err
		}
		return lifecycle.Cancel(g)
	})
}

// SetCountPolicy resolves a member-count mismatch. The policy can only change
// while no money has moved in the current cycle.
func (s *Groups) SetCountPolicy(ctx context.Context, groupID, actor string, policy models.CountPolicy) (*models.Group, error) {
	return s.mutate(ctx, "Groups.SetCountPolicy", groupID, func(_ context.Context, _ storage.Queries, g *models.Group) error {
		if err := requireOwner(g, actor); err != nil {
			return err
		}
		if g.Status.Terminal() {
			return apperrors.Newf(apperrors.CodeConflict, "kameti is %s", g.Status)
		}
		for _, m := range g.Members {
			if m.HasReceivedPayout || m.PaymentStatus == models.PaymentStatusPaid {
				return apperrors.New(apperrors.CodeConflict, "count policy cannot change after contributions started")
			}
		}

		switch policy.Kind {
		case models.CountPolicyStrict:
			policy.Value = 0
		case models.CountPolicyOverrideCount:
			if policy.Value < 1 || policy.Value > int64(g.TotalMembers) {
				return apperrors.Newf(apperrors.CodeInvalidArgument,
					"override count must be between 1 and %d, got %d", g.TotalMembers, policy.Value)
			}
			if policy.Value < int64(len(g.Members)) {
				return apperrors.Newf(apperrors.CodeInvalidArgument,
					"override count %d is below the %d members already joined", policy.Value, len(g.Members))
			}
		case models.CountPolicyOverrideAmount:
			if policy.Value <= 0 {
				return apperrors.Newf(apperrors.CodeInvalidArgument, "override amount must be positive, got %d", policy.Value)
			}
		default:
			return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown count policy %q", policy.Kind)
		}

		g.CountPolicy = policy
		g.TotalRounds = g.EffectiveMemberCount()
		return nil
	})
}

// Readiness evaluates a round of a kameti. Zero means the current round.
func (s *Groups) Readiness(ctx context.Context, groupID string, round int) (rounds.Readiness, error) {
	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return rounds.Readiness{}, err
	}
	return rounds.Evaluate(group, round), nil
}

// ListPayouts returns the payout ledger of a kameti.
func (s *Groups) ListPayouts(ctx context.Context, groupID string) ([]*models.Payout, error) {
	if _, err := loadGroup(ctx, s.store, groupID); err != nil {
		return nil, err
	}
	payouts, err := s.store.ListPayoutsByGroup(ctx, groupID)
	if err != nil {
		return nil, storageError(err, "failed to list payouts")
	}
	return payouts, nil
}

// ListPaymentRecords returns contribution records; round 0 returns all rounds.
func (s *Groups) ListPaymentRecords(ctx context.Context, groupID string, round int) ([]*models.PaymentRecord, error) {
	if _, err := loadGroup(ctx, s.store, groupID); err != nil {
		return nil, err
	}
	records, err := s.store.ListPaymentRecords(ctx, groupID, round)
	if err != nil {
		return nil, storageError(err, "failed to list payment records")
	}
	return records, nil
}

// mutate loads a group, applies fn and saves it in one transaction.
func (s *Groups) mutate(ctx context.Context, op, groupID string, fn func(context.Context, storage.Queries, *models.Group) error) (group *models.Group, err error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("kameti.group_id", groupID)))
	defer func() { endSpan(span, err) }()

	err = s.store.WithinTx(ctx, func(q storage.Queries) error {
		g, err := loadGroup(ctx, q, groupID)
		if err != nil {
			return err
		}
		if err := fn(ctx, q, g); err != nil {
			return err
		}
		if err := q.SaveGroup(ctx, g); err != nil {
			return storageError(err, "failed to update kameti")
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to update kameti")
	}
	return group, nil
}
