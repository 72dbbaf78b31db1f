package models

import "time"

// GroupStatus is the lifecycle state of a kameti.
type GroupStatus string

const (
	GroupStatusPending   GroupStatus = "pending"
	GroupStatusActive    GroupStatus = "active"
	GroupStatusClosed    GroupStatus = "closed"
	GroupStatusCancelled GroupStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s GroupStatus) Terminal() bool {
	return s == GroupStatusClosed || s == GroupStatusCancelled
}

// PayoutOrder selects how the next recipient is chosen.
type PayoutOrder string

const (
	PayoutOrderRandom     PayoutOrder = "random"
	PayoutOrderSequential PayoutOrder = "sequential"
	PayoutOrderAdmin      PayoutOrder = "admin"
	PayoutOrderBidding    PayoutOrder = "bidding"
)

// Valid reports whether o is a known payout order.
func (o PayoutOrder) Valid() bool {
	switch o {
	case PayoutOrderRandom, PayoutOrderSequential, PayoutOrderAdmin, PayoutOrderBidding:
		return true
	}
	return false
}

// Frequency is the contribution cadence used to compute due dates.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// DueDate returns the due date of the given 1-based round.
func (f Frequency) DueDate(start time.Time, round int) time.Time {
	n := round - 1
	if n < 0 {
		n = 0
	}
	switch f {
	case FrequencyDaily:
		return start.AddDate(0, 0, n)
	case FrequencyWeekly:
		return start.AddDate(0, 0, 7*n)
	default:
		return start.AddDate(0, n, 0)
	}
}

// CountPolicyKind tags the CountPolicy variant.
type CountPolicyKind string

const (
	// CountPolicyStrict requires the joined member count to match the configured count.
	CountPolicyStrict CountPolicyKind = "strict"
	// CountPolicyOverrideCount accepts Value as the effective member count.
	CountPolicyOverrideCount CountPolicyKind = "override_count"
	// CountPolicyOverrideAmount accepts the joined count and uses Value as the
	// per-member contribution.
	CountPolicyOverrideAmount CountPolicyKind = "override_amount"
)

// CountPolicy decides what happens when fewer members joined than configured.
type CountPolicy struct {
	Kind  CountPolicyKind
	Value int64
}

// StrictPolicy is the default count policy.
func StrictPolicy() CountPolicy { return CountPolicy{Kind: CountPolicyStrict} }

// PaymentStatus is a member's contribution state for the current round.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// Group is a kameti: a fixed set of members contributing Amount per round.
type Group struct {
	// ID is the unique identifier for the group (UUID format). It doubles as
	// the external group reference carried by payment events.
	ID string

	// Name is the display name of the group.
	Name string

	// CreatedBy is the owner's user ID. Only the owner triggers payouts.
	CreatedBy string

	// Amount is the per-member, per-round contribution in minor units.
	Amount int64

	// TotalMembers is the member count declared at creation.
	TotalMembers int

	// CurrentRound is 1-based, monotonic and never exceeds TotalRounds.
	CurrentRound int

	// TotalRounds equals TotalMembers unless a count override applies.
	TotalRounds int

	PayoutOrder PayoutOrder
	CountPolicy CountPolicy
	Status      GroupStatus
	Frequency   Frequency

	// StartDate is the due date of round 1.
	StartDate time.Time

	// Members in join order.
	Members []Member

	// Version is incremented on every write; writers compare-and-swap on it.
	Version int64

	CreatedAt time.Time
}

// Member returns the member with the given user ID.
func (g *Group) Member(userID string) (*Member, bool) {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i], true
		}
	}
	return nil, false
}

// EffectiveMemberCount is the member count pool and round math use.
func (g *Group) EffectiveMemberCount() int {
	switch g.CountPolicy.Kind {
	case CountPolicyOverrideCount:
		return int(g.CountPolicy.Value)
	case CountPolicyOverrideAmount:
		return len(g.Members)
	default:
		return g.TotalMembers
	}
}

// EffectiveAmount is the per-member contribution pool and payout math use.
func (g *Group) EffectiveAmount() int64 {
	if g.CountPolicy.Kind == CountPolicyOverrideAmount {
		return g.CountPolicy.Value
	}
	return g.Amount
}

// Member is one participant of a group.
type Member struct {
	UserID string

	// Position is the 1-based join order.
	Position int

	PaymentStatus  PaymentStatus
	LastPaymentRef string

	// HasReceivedPayout flips false->true once per cycle.
	HasReceivedPayout bool

	// PayoutRound is the round the member was paid out in, 0 if not yet.
	PayoutRound int

	JoinedAt time.Time
}
