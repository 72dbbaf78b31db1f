// Package lifecycle owns the kameti status machine.
//
// Every transition is an explicit function so callers never flip
// Group.Status by assignment:
//
//	pending --Activate--> active --Close--> closed
//	   \                    |
//	    +-----Cancel--------+--> cancelled
//
// Closed and cancelled are terminal.
package lifecycle

import (
	"fmt"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/models"
)

var transitions = map[models.GroupStatus][]models.GroupStatus{
	models.GroupStatusPending: {models.GroupStatusActive, models.GroupStatusCancelled},
	models.GroupStatusActive:  {models.GroupStatusClosed, models.GroupStatusCancelled},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to models.GroupStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transition(g *models.Group, to models.GroupStatus) error {
	if !CanTransition(g.Status, to) {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			fmt.Sprintf("kameti cannot move from %s to %s", g.Status, to),
			map[string]string{"group_id": g.ID, "from": string(g.Status), "to": string(to)},
		)
	}
	g.Status = to
	return nil
}

// Activate moves a pending group to active. A group needs at least one
// member to become active.
func Activate(g *models.Group) error {
	if g.Status == models.GroupStatusPending && len(g.Members) == 0 {
		return apperrors.Newf(apperrors.CodeConflict, "kameti %s has no members yet", g.ID)
	}
	return transition(g, models.GroupStatusActive)
}

// Close ends the cycle and pins CurrentRound at the effective member count.
func Close(g *models.Group) error {
	if err := transition(g, models.GroupStatusClosed); err != nil {
		return err
	}
	g.CurrentRound = RoundCap(g)
	return nil
}

// Cancel is the administrative exit. A group that already paid anyone out
// cannot be cancelled.
func Cancel(g *models.Group) error {
	for _, m := range g.Members {
		if m.HasReceivedPayout {
			return apperrors.Newf(apperrors.CodeConflict,
				"kameti %s already disbursed round %d and cannot be cancelled", g.ID, m.PayoutRound)
		}
	}
	return transition(g, models.GroupStatusCancelled)
}

// RoundCap is the last round a group can reach: the number of members that
// will receive a payout.
func RoundCap(g *models.Group) int {
	n := len(g.Members)
	if eff := g.EffectiveMemberCount(); eff > 0 && eff < n {
		n = eff
	}
	if n == 0 {
		n = g.TotalRounds
	}
	return n
}

// RequireAcceptingPayments returns a conflict when the group no longer takes
// contributions.
func RequireAcceptingPayments(g *models.Group) error {
	if g.Status.Terminal() {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			fmt.Sprintf("kameti is %s and no longer accepts payments", g.Status),
			map[string]string{"group_id": g.ID},
		)
	}
	return nil
}

// RequireActive returns a conflict unless the group is active.
func RequireActive(g *models.Group) error {
	if g.Status != models.GroupStatusActive {
		return apperrors.WithMetadata(apperrors.CodeConflict,
			fmt.Sprintf("kameti is %s, payouts need an active kameti", g.Status),
			map[string]string{"group_id": g.ID},
		)
	}
	return nil
}
