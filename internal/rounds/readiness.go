// Package rounds holds the pure round logic: readiness evaluation and
// recipient selection. Nothing here touches storage.
package rounds

import (
	"fmt"

	"github.com/mmynk/kameti/internal/models"
)

// Readiness is the funding state of one round.
type Readiness struct {
	Ready bool

	// AwaitingOverride is set when the joined member count disagrees with the
	// configured count and no count policy resolves it.
	AwaitingOverride bool

	// Reason is a human-readable diagnostic, e.g. "3/5 members have paid".
	Reason string

	PaidCount int

	// TotalMembers is the number of members who actually joined.
	TotalMembers int

	// ConfiguredMembers is the count declared at creation.
	ConfiguredMembers int

	// PoolAmount is effective member count x effective per-member amount.
	PoolAmount int64

	EligibleRecipients int
	Round              int
	TotalRounds        int
	GroupStatus        models.GroupStatus
}

// Evaluate decides whether round is fully funded. A zero round means the
// group's current round. Only the current round can be ready: member payment
// status describes the current round and is reset on every advance.
func Evaluate(g *models.Group, round int) Readiness {
	if round <= 0 {
		round = g.CurrentRound
	}

	actual := len(g.Members)
	r := Readiness{
		TotalMembers:      actual,
		ConfiguredMembers: g.TotalMembers,
		Round:             round,
		TotalRounds:       g.TotalRounds,
		GroupStatus:       g.Status,
	}
	for _, m := range g.Members {
		if !m.HasReceivedPayout {
			r.EligibleRecipients++
		}
	}

	effective := g.EffectiveMemberCount()
	r.PoolAmount = int64(effective) * g.EffectiveAmount()

	switch {
	case g.Status.Terminal():
		r.Reason = fmt.Sprintf("kameti is %s", g.Status)
		return r
	case round < g.CurrentRound:
		r.Reason = fmt.Sprintf("round %d was already disbursed", round)
		return r
	case round > g.CurrentRound:
		r.Reason = fmt.Sprintf("round %d has not started, current round is %d", round, g.CurrentRound)
		return r
	}

	for _, m := range g.Members {
		if m.PaymentStatus == models.PaymentStatusPaid {
			r.PaidCount++
		}
	}

	if actual == 0 {
		r.Reason = "no members have joined yet"
		return r
	}
	// A count override must match the joined members even when the group
	// filled up after it was set.
	switch g.CountPolicy.Kind {
	case models.CountPolicyOverrideCount:
		if effective != actual {
			r.AwaitingOverride = true
			r.Reason = fmt.Sprintf("count override expects %d members but %d joined", effective, actual)
			return r
		}
	case models.CountPolicyOverrideAmount:
	default:
		if actual != g.TotalMembers {
			r.AwaitingOverride = true
			r.Reason = fmt.Sprintf("awaiting policy override: %d of %d configured members joined", actual, g.TotalMembers)
			return r
		}
	}
	if r.EligibleRecipients == 0 {
		r.Reason = "every member has already received a payout"
		return r
	}
	if r.PaidCount < actual {
		r.Reason = fmt.Sprintf("%d/%d members have paid", r.PaidCount, actual)
		return r
	}

	r.Ready = true
	r.Reason = fmt.Sprintf("all %d members have paid", actual)
	return r
}

// DisbursementAmount is what the round actually collected: the effective
// per-member amount times the members marked paid.
func DisbursementAmount(g *models.Group) int64 {
	paid := 0
	for _, m := range g.Members {
		if m.PaymentStatus == models.PaymentStatusPaid {
			paid++
		}
	}
	return int64(paid) * g.EffectiveAmount()
}
