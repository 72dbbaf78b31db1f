package lifecycle

import (
	"errors"
	"testing"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/models"
)

func newGroup(status models.GroupStatus, members int) *models.Group {
	g := &models.Group{
		ID:           "g1",
		Status:       status,
		TotalMembers: members,
		TotalRounds:  members,
		CurrentRound: 1,
		CountPolicy:  models.StrictPolicy(),
	}
	for i := 0; i < members; i++ {
		g.Members = append(g.Members, models.Member{UserID: string(rune('A' + i)), Position: i + 1})
	}
	return g
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.GroupStatus
		want     bool
	}{
		{models.GroupStatusPending, models.GroupStatusActive, true},
		{models.GroupStatusPending, models.GroupStatusCancelled, true},
		{models.GroupStatusPending, models.GroupStatusClosed, false},
		{models.GroupStatusActive, models.GroupStatusClosed, true},
		{models.GroupStatusActive, models.GroupStatusPending, false},
		{models.GroupStatusClosed, models.GroupStatusActive, false},
		{models.GroupStatusClosed, models.GroupStatusPending, false},
		{models.GroupStatusCancelled, models.GroupStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestActivate(t *testing.T) {
	t.Run("pending with members", func(t *testing.T) {
		g := newGroup(models.GroupStatusPending, 3)
		if err := Activate(g); err != nil {
			t.Fatalf("Activate failed: %v", err)
		}
		if g.Status != models.GroupStatusActive {
			t.Errorf("status = %s, want active", g.Status)
		}
	})

	t.Run("pending without members", func(t *testing.T) {
		g := newGroup(models.GroupStatusPending, 0)
		if err := Activate(g); !errors.Is(err, apperrors.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("already active", func(t *testing.T) {
		g := newGroup(models.GroupStatusActive, 3)
		if err := Activate(g); !errors.Is(err, apperrors.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})
}

func TestClosePinsRound(t *testing.T) {
	g := newGroup(models.GroupStatusActive, 3)
	g.CurrentRound = 3

	if err := Close(g); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if g.Status != models.GroupStatusClosed {
		t.Errorf("status = %s, want closed", g.Status)
	}
	if g.CurrentRound != 3 {
		t.Errorf("current round = %d, want 3", g.CurrentRound)
	}

	if err := Close(g); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("closing twice should conflict, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	g := newGroup(models.GroupStatusActive, 2)
	if err := Cancel(g); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	paid := newGroup(models.GroupStatusActive, 2)
	paid.Members[0].HasReceivedPayout = true
	paid.Members[0].PayoutRound = 1
	if err := Cancel(paid); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected conflict cancelling a disbursed kameti, got %v", err)
	}
}

func TestRoundCap(t *testing.T) {
	g := newGroup(models.GroupStatusActive, 2)
	g.TotalMembers = 3
	g.TotalRounds = 3
	if got := RoundCap(g); got != 2 {
		t.Errorf("RoundCap = %d, want 2 for an under-subscribed group", got)
	}

	g.CountPolicy = models.CountPolicy{Kind: models.CountPolicyOverrideCount, Value: 2}
	if got := RoundCap(g); got != 2 {
		t.Errorf("RoundCap = %d, want 2 with a count override", got)
	}
}

func TestRequireGuards(t *testing.T) {
	closed := newGroup(models.GroupStatusClosed, 2)
	if err := RequireAcceptingPayments(closed); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("closed kameti should reject payments, got %v", err)
	}
	if err := RequireActive(closed); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("closed kameti should reject payouts, got %v", err)
	}

	pending := newGroup(models.GroupStatusPending, 2)
	if err := RequireAcceptingPayments(pending); err != nil {
		t.Errorf("pending kameti should accept payments, got %v", err)
	}
}
