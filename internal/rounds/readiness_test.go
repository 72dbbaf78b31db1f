package rounds

import (
	"testing"

	"github.com/mmynk/kameti/internal/models"
)

func buildGroup(configured int, paid ...bool) *models.Group {
	g := &models.Group{
		ID:           "g1",
		Amount:       1000,
		TotalMembers: configured,
		TotalRounds:  configured,
		CurrentRound: 1,
		Status:       models.GroupStatusActive,
		CountPolicy:  models.StrictPolicy(),
	}
	for i, p := range paid {
		status := models.PaymentStatusUnpaid
		if p {
			status = models.PaymentStatusPaid
		}
		g.Members = append(g.Members, models.Member{
			UserID:        string(rune('A' + i)),
			Position:      i + 1,
			PaymentStatus: status,
		})
	}
	return g
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		group      func() *models.Group
		round      int
		wantReady  bool
		wantReason string
		wantPaid   int
		wantPool   int64
	}{
		{
			name:       "all three paid",
			group:      func() *models.Group { return buildGroup(3, true, true, true) },
			wantReady:  true,
			wantReason: "all 3 members have paid",
			wantPaid:   3,
			wantPool:   3000,
		},
		{
			name:       "partial payment",
			group:      func() *models.Group { return buildGroup(5, true, true, true, false, false) },
			wantReason: "3/5 members have paid",
			wantPaid:   3,
			wantPool:   5000,
		},
		{
			name:       "under-subscribed without override",
			group:      func() *models.Group { return buildGroup(3, true, true) },
			wantReason: "awaiting policy override: 2 of 3 configured members joined",
			wantPaid:   2,
			wantPool:   3000,
		},
		{
			name: "under-subscribed with count override",
			group: func() *models.Group {
				g := buildGroup(3, true, true)
				g.CountPolicy = models.CountPolicy{Kind: models.CountPolicyOverrideCount, Value: 2}
				return g
			},
			wantReady:  true,
			wantReason: "all 2 members have paid",
			wantPaid:   2,
			wantPool:   2000,
		},
		{
			name: "count override disagrees with joined members",
			group: func() *models.Group {
				g := buildGroup(4, true, true)
				g.CountPolicy = models.CountPolicy{Kind: models.CountPolicyOverrideCount, Value: 3}
				return g
			},
			wantReason: "count override expects 3 members but 2 joined",
			wantPaid:   2,
			wantPool:   3000,
		},
		{
			name: "count override below a full group",
			group: func() *models.Group {
				g := buildGroup(3, true, true, true)
				g.CountPolicy = models.CountPolicy{Kind: models.CountPolicyOverrideCount, Value: 2}
				return g
			},
			wantReason: "count override expects 2 members but 3 joined",
			wantPaid:   3,
			wantPool:   2000,
		},
		{
			name: "under-subscribed with amount override",
			group: func() *models.Group {
				g := buildGroup(3, true, true)
				g.CountPolicy = models.CountPolicy{Kind: models.CountPolicyOverrideAmount, Value: 1500}
				return g
			},
			wantReady:  true,
			wantReason: "all 2 members have paid",
			wantPaid:   2,
			wantPool:   3000,
		},
		{
			name:       "no members",
			group:      func() *models.Group { return buildGroup(3) },
			wantReason: "no members have joined yet",
			wantPool:   3000,
		},
		{
			name: "closed kameti",
			group: func() *models.Group {
				g := buildGroup(2, true, true)
				g.Status = models.GroupStatusClosed
				return g
			},
			wantReason: "kameti is closed",
			wantPool:   2000,
		},
		{
			name: "past round",
			group: func() *models.Group {
				g := buildGroup(3, true, true, true)
				g.CurrentRound = 2
				return g
			},
			round:      1,
			wantReason: "round 1 was already disbursed",
			wantPool:   3000,
		},
		{
			name:       "future round",
			group:      func() *models.Group { return buildGroup(3, true, true, true) },
			round:      3,
			wantReason: "round 3 has not started, current round is 1",
			wantPool:   3000,
		},
		{
			name: "everyone already received",
			group: func() *models.Group {
				g := buildGroup(2, true, true)
				for i := range g.Members {
					g.Members[i].HasReceivedPayout = true
				}
				return g
			},
			wantReason: "every member has already received a payout",
			wantPaid:   2,
			wantPool:   2000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.group(), tt.round)
			if got.Ready != tt.wantReady {
				t.Errorf("Ready = %v, want %v (reason %q)", got.Ready, tt.wantReady, got.Reason)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if got.PaidCount != tt.wantPaid {
				t.Errorf("PaidCount = %d, want %d", got.PaidCount, tt.wantPaid)
			}
			if got.PoolAmount != tt.wantPool {
				t.Errorf("PoolAmount = %d, want %d", got.PoolAmount, tt.wantPool)
			}
		})
	}
}

func TestEvaluateDefaultsToCurrentRound(t *testing.T) {
	g := buildGroup(2, true, true)
	g.CurrentRound = 2
	g.Members[0].HasReceivedPayout = true

	got := Evaluate(g, 0)
	if got.Round != 2 {
		t.Errorf("Round = %d, want 2", got.Round)
	}
	if got.EligibleRecipients != 1 {
		t.Errorf("EligibleRecipients = %d, want 1", got.EligibleRecipients)
	}
	if !got.Ready {
		t.Errorf("expected ready, got %q", got.Reason)
	}
}

func TestReadinessNeverTrueWithUnpaidMember(t *testing.T) {
	for unpaid := 0; unpaid < 4; unpaid++ {
		paid := []bool{true, true, true, true}
		paid[unpaid] = false
		g := buildGroup(4, paid...)
		if Evaluate(g, 0).Ready {
			t.Errorf("member %d unpaid but readiness is true", unpaid)
		}
	}
}

func TestDisbursementAmount(t *testing.T) {
	g := buildGroup(3, true, false, true)
	if got := DisbursementAmount(g); got != 2000 {
		t.Errorf("DisbursementAmount = %d, want 2000", got)
	}

	g.CountPolicy = models.CountPolicy{Kind: models.CountPolicyOverrideAmount, Value: 1500}
	if got := DisbursementAmount(g); got != 3000 {
		t.Errorf("DisbursementAmount with amount override = %d, want 3000", got)
	}
}
