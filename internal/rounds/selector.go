package rounds

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/models"
)

// Selector picks the next payout recipient.
//
// The random policy draws uniformly from the eligible set using the injected
// source. It is non-deterministic in production; tests pass a seeded source.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector drawing from rng.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// NewRandomSelector creates a selector seeded from crypto/rand.
func NewRandomSelector() (*Selector, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	seed := int64(binary.LittleEndian.Uint64(b[:]))
	return NewSelector(rand.New(rand.NewSource(seed))), nil
}

// Eligible returns members that have not received a payout, in join order.
func Eligible(g *models.Group) []*models.Member {
	var out []*models.Member
	for i := range g.Members {
		if !g.Members[i].HasReceivedPayout {
			out = append(out, &g.Members[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Select returns the recipient for order. targetID is required for the
// admin policy and ignored otherwise. The returned pointer aliases the
// member inside g.
func (s *Selector) Select(g *models.Group, order models.PayoutOrder, targetID string) (*models.Member, error) {
	eligible := Eligible(g)
	if len(eligible) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeNoEligibleRecipients,
			"every member has already received a payout this cycle",
			map[string]string{"group_id": g.ID},
		)
	}

	switch order {
	case models.PayoutOrderAdmin:
		return selectTarget(eligible, targetID)
	case models.PayoutOrderSequential:
		return eligible[0], nil
	case models.PayoutOrderRandom:
		s.mu.Lock()
		idx := s.rng.Intn(len(eligible))
		s.mu.Unlock()
		return eligible[idx], nil
	case models.PayoutOrderBidding:
		return nil, apperrors.New(apperrors.CodeNotSupported, "bidding payout order is not supported")
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown payout order %q", order)
	}
}

func selectTarget(eligible []*models.Member, targetID string) (*models.Member, error) {
	if targetID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidSelection, "admin payout order requires a recipient")
	}
	for _, m := range eligible {
		if m.UserID == targetID {
			return m, nil
		}
	}
	return nil, apperrors.WithMetadata(apperrors.CodeInvalidSelection,
		fmt.Sprintf("member %s is not eligible for a payout", targetID),
		map[string]string{"recipient_id": targetID},
	)
}
