package engine

import (
	"context"
	"fmt"

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

// PayoutResult is the outcome of a processed round.
type PayoutResult struct {
	Payout      *models.Payout
	NextRound   int
	IsCompleted bool
	GroupStatus models.GroupStatus
}

// Processor disburses a funded round to one recipient and advances the group.
type Processor struct {
	store    storage.Store
	selector *rounds.Selector
	deps
}

// NewProcessor creates a processor that picks recipients with selector.
func NewProcessor(store storage.Store, selector *rounds.Selector, opts ...Option) *Processor {
	return &Processor{store: store, selector: selector, deps: newDeps(opts)}
}

// Process pays out the group's current round. recipientID overrides the
// group's payout order; it is validated like an admin selection. Only the
// group owner may call it.
//
// Readiness and eligibility are re-checked inside the transaction, so a
// second call for the same round finds the round already advanced (or the
// group closed) and fails with a conflict.
func (p *Processor) Process(ctx context.Context, groupID, recipientID, actor string) (result *PayoutResult, err error) {
	ctx, span := tracer.Start(ctx, "Processor.Process", trace.WithAttributes(
		attribute.String("kameti.group_id", groupID),
		attribute.String("kameti.actor", actor),
	))
	defer func() { endSpan(span, err) }()

	var group *models.Group
	err = p.store.WithinTx(ctx, func(q storage.Queries) error {
		g, err := loadGroup(ctx, q, groupID)
		if err != nil {
			return err
		}
		if err := requireOwner(g, actor); err != nil {
			return err
		}
		res, err := p.disburse(ctx, q, g, recipientID, actor)
		if err != nil {
			return err
		}
		result, group = res, g
		return nil
	})
	if err != nil {
		p.metrics.ObservePayout(metrics.ResultRejected, 0, false)
		return nil, storageError(err, "failed to process payout")
	}

	p.metrics.ObservePayout(metrics.ResultCreated, result.Payout.Amount, result.IsCompleted)
	span.SetAttributes(attribute.Int("kameti.round", result.Payout.Round))

	msgs := []notify.Message{{
		Kind:    notify.KindPayoutDisbursed,
		GroupID: group.ID,
		UserID:  result.Payout.RecipientID,
		Round:   result.Payout.Round,
		Amount:  result.Payout.Amount,
		Text:    fmt.Sprintf("You received %d from %s for round %d.", result.Payout.Amount, group.Name, result.Payout.Round),
	}}
	if result.IsCompleted {
		msgs = append(msgs, notify.Message{
			Kind:    notify.KindKametiClosed,
			GroupID: group.ID,
			Round:   group.CurrentRound,
			Text:    fmt.Sprintf("%s completed all %d rounds.", group.Name, group.CurrentRound),
		})
	} else {
		msgs = append(msgs, notify.Message{
			Kind:    notify.KindRoundAdvanced,
			GroupID: group.ID,
			Round:   result.NextRound,
			Amount:  group.EffectiveAmount(),
			Text:    fmt.Sprintf("Round %d of %s has started. Contribution due %s.", result.NextRound, group.Name, dueDate(group, result.NextRound).Format("2006-01-02")),
		})
	}
	p.notifyAll(ctx, msgs...)
	return result, nil
}

func (p *Processor) disburse(ctx context.Context, q storage.Queries, g *models.Group, recipientID, actor string) (*PayoutResult, error) {
	if err := lifecycle.RequireActive(g); err != nil {
		return nil, err
	}

	readiness := rounds.Evaluate(g, g.CurrentRound)
	if !readiness.Ready {
		code := apperrors.CodeConflict
		if readiness.AwaitingOverride {
			code = apperrors.CodePolicyViolation
		}
		return nil, apperrors.WithMetadata(code,
			fmt.Sprintf("round %d is not ready: %s", g.CurrentRound, readiness.Reason),
			map[string]string{"group_id": g.ID, "round": fmt.Sprint(g.CurrentRound)},
		)
	}

	var (
		recipient *models.Member
		err       error
	)
	if recipientID != "" {
		recipient, err = p.selector.Select(g, models.PayoutOrderAdmin, recipientID)
	} else {
		recipient, err = p.selector.Select(g, g.PayoutOrder, "")
	}
	if err != nil {
		return nil, err
	}

	round := g.CurrentRound
	payout := &models.Payout{
		ID:          uuid.New().String(),
		GroupID:     g.ID,
		Round:       round,
		RecipientID: recipient.UserID,
		Amount:      rounds.DisbursementAmount(g),
		Status:      models.PayoutStatusCompleted,
		ProcessedBy: actor,
		CreatedAt:   p.now(),
	}

	recipient.HasReceivedPayout = true
	recipient.PayoutRound = round
	recipient.PaymentStatus = models.PaymentStatusUnpaid

	completed := round >= lifecycle.RoundCap(g) || len(rounds.Eligible(g)) == 0
	if completed {
		if err := lifecycle.Close(g); err != nil {
			return nil, err
		}
	} else {
		// Every member contributes again next round.
		for i := range g.Members {
			g.Members[i].PaymentStatus = models.PaymentStatusUnpaid
		}
		g.CurrentRound++
	}

	if err := q.CreatePayout(ctx, payout); err != nil {
		return nil, storageError(err, fmt.Sprintf("round %d was already disbursed", round))
	}
	if err := q.SaveGroup(ctx, g); err != nil {
		return nil, storageError(err, "failed to update kameti")
	}

	return &PayoutResult{
		Payout:      payout,
		NextRound:   g.CurrentRound,
		IsCompleted: completed,
		GroupStatus: g.Status,
	}, nil
}
