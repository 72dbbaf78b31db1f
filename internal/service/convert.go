package service

import (
	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/rounds"
	"github.com/mmynk/kameti/pkg/api"
)

func toAPIGroup(g *models.Group) *api.Group {
	out := &api.Group{
		ID:           g.ID,
		Name:         g.Name,
		CreatedBy:    g.CreatedBy,
		Amount:       g.Amount,
		TotalMembers: g.TotalMembers,
		CurrentRound: g.CurrentRound,
		TotalRounds:  g.TotalRounds,
		PayoutOrder:  string(g.PayoutOrder),
		CountPolicy:  api.CountPolicy{Kind: string(g.CountPolicy.Kind), Value: g.CountPolicy.Value},
		Status:       string(g.Status),
		Frequency:    string(g.Frequency),
		StartDate:    g.StartDate,
		Version:      g.Version,
		CreatedAt:    g.CreatedAt,
		Members:      make([]api.Member, len(g.Members)),
	}
	for i, m := range g.Members {
		out.Members[i] = api.Member{
			UserID:            m.UserID,
			Position:          m.Position,
			PaymentStatus:     string(m.PaymentStatus),
			LastPaymentRef:    m.LastPaymentRef,
			HasReceivedPayout: m.HasReceivedPayout,
			PayoutRound:       m.PayoutRound,
			JoinedAt:          m.JoinedAt,
		}
	}
	return out
}

func toAPIPayment(p *models.Payment) *api.Payment {
	return &api.Payment{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		GroupID:       p.GroupID,
		UserID:        p.UserID,
		Round:         p.Round,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Source:        string(p.Source),
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
	}
}

func toAPIRecord(r *models.PaymentRecord) *api.PaymentRecord {
	if r == nil {
		return nil
	}
	out := &api.PaymentRecord{
		ID:        r.ID,
		GroupID:   r.GroupID,
		UserID:    r.UserID,
		Round:     r.Round,
		Amount:    r.Amount,
		Status:    string(r.Status),
		DueDate:   r.DueDate,
		IsLate:    r.IsLate,
		DaysLate:  r.DaysLate,
		PaymentID: r.PaymentID,
	}
	if !r.PaidAt.IsZero() {
		paidAt := r.PaidAt
		out.PaidAt = &paidAt
	}
	return out
}

func toAPIPayout(p *models.Payout) *api.Payout {
	return &api.Payout{
		ID:          p.ID,
		GroupID:     p.GroupID,
		Round:       p.Round,
		RecipientID: p.RecipientID,
		Amount:      p.Amount,
		Status:      p.Status,
		ProcessedBy: p.ProcessedBy,
		CreatedAt:   p.CreatedAt,
	}
}

func toAPIReadiness(r rounds.Readiness) *api.Readiness {
	return &api.Readiness{
		Ready:              r.Ready,
		Reason:             r.Reason,
		PaidCount:          r.PaidCount,
		TotalMembers:       r.TotalMembers,
		PoolAmount:         r.PoolAmount,
		EligibleRecipients: r.EligibleRecipients,
		Round:              r.Round,
		TotalRounds:        r.TotalRounds,
		GroupStatus:        string(r.GroupStatus),
	}
}
