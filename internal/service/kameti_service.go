package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/kameti/internal/auth"
	"github.com/mmynk/kameti/internal/engine"
	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/gateway"
	"github.com/mmynk/kameti/internal/middleware"
	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/pkg/api"
)

// KametiService implements the Connect KametiService.
type KametiService struct {
	groups     *engine.Groups
	reconciler *engine.Reconciler
	processor  *engine.Processor
}

// NewKametiService creates the service over the engine components.
func NewKametiService(groups *engine.Groups, reconciler *engine.Reconciler, processor *engine.Processor) *KametiService {
	return &KametiService{groups: groups, reconciler: reconciler, processor: processor}
}

// Register mounts every procedure on mux. opts are applied to each handler
// after the JSON codec.
func (s *KametiService) Register(mux *http.ServeMux, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{api.WithJSON()}, opts...)
	mux.Handle(api.CreateGroupProcedure, connect.NewUnaryHandler(api.CreateGroupProcedure, s.CreateGroup, opts...))
	mux.Handle(api.GetGroupProcedure, connect.NewUnaryHandler(api.GetGroupProcedure, s.GetGroup, opts...))
	mux.Handle(api.JoinGroupProcedure, connect.NewUnaryHandler(api.JoinGroupProcedure, s.JoinGroup, opts...))
	mux.Handle(api.ActivateGroupProcedure, connect.NewUnaryHandler(api.ActivateGroupProcedure, s.ActivateGroup, opts...))
	mux.Handle(api.CancelGroupProcedure, connect.NewUnaryHandler(api.CancelGroupProcedure, s.CancelGroup, opts...))
	mux.Handle(api.SetCountPolicyProcedure, connect.NewUnaryHandler(api.SetCountPolicyProcedure, s.SetCountPolicy, opts...))
	mux.Handle(api.InitiatePaymentProcedure, connect.NewUnaryHandler(api.InitiatePaymentProcedure, s.InitiatePayment, opts...))
	mux.Handle(api.ReconcilePaymentProcedure, connect.NewUnaryHandler(api.ReconcilePaymentProcedure, s.ReconcilePayment, opts...))
	mux.Handle(api.GetRoundReadinessProcedure, connect.NewUnaryHandler(api.GetRoundReadinessProcedure, s.GetRoundReadiness, opts...))
	mux.Handle(api.ProcessPayoutProcedure, connect.NewUnaryHandler(api.ProcessPayoutProcedure, s.ProcessPayout, opts...))
	mux.Handle(api.ListPayoutsProcedure, connect.NewUnaryHandler(api.ListPayoutsProcedure, s.ListPayouts, opts...))
	mux.Handle(api.ListPaymentRecordsProcedure, connect.NewUnaryHandler(api.ListPaymentRecordsProcedure, s.ListPaymentRecords, opts...))
}

func fail(ctx context.Context, op string, err error, args ...any) error {
	args = append(args, "code", apperrors.CodeOf(err), "error", err)
	slog.ErrorContext(ctx, op+" failed", args...)
	return apperrors.ToConnect(err)
}

// CreateGroup creates a kameti owned by the caller.
func (s *KametiService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.GroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"total_members", req.Msg.TotalMembers,
		"amount", req.Msg.Amount,
	)

	var start time.Time
	if req.Msg.StartDate != "" {
		parsed, err := time.Parse(time.DateOnly, req.Msg.StartDate)
		if err != nil {
			return nil, fail(ctx, "CreateGroup", apperrors.Wrap(apperrors.CodeInvalidArgument, "start_date must be YYYY-MM-DD", err))
		}
		start = parsed
	}

	group, err := s.groups.CreateGroup(ctx, engine.CreateGroupParams{
		Name:         req.Msg.Name,
		OwnerID:      middleware.GetUserID(ctx),
		Amount:       req.Msg.Amount,
		TotalMembers: req.Msg.TotalMembers,
		PayoutOrder:  models.PayoutOrder(req.Msg.PayoutOrder),
		Frequency:    models.Frequency(req.Msg.Frequency),
		StartDate:    start,
		OwnerJoins:   req.Msg.OwnerJoins,
	})
	if err != nil {
		return nil, fail(ctx, "CreateGroup", err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&api.GroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup retrieves a kameti by ID.
func (s *KametiService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.groups.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail(ctx, "GetGroup", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "status", group.Status)
	return connect.NewResponse(&api.GroupResponse{Group: toAPIGroup(group)}), nil
}

// JoinGroup adds the caller to a pending kameti.
func (s *KametiService) JoinGroup(ctx context.Context, req *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.GroupResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("JoinGroup request received", "group_id", req.Msg.GroupID, "user_id", userID)

	group, err := s.groups.JoinGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail(ctx, "JoinGroup", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("JoinGroup successful", "group_id", group.ID, "members", len(group.Members))
	return connect.NewResponse(&api.GroupResponse{Group: toAPIGroup(group)}), nil
}

// ActivateGroup starts a pending kameti.
func (s *KametiService) ActivateGroup(ctx context.Context, req *connect.Request[api.ActivateGroupRequest]) (*connect.Response[api.GroupResponse], error) {
	slog.Info("ActivateGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.groups.ActivateGroup(ctx, req.Msg.GroupID, middleware.GetUserID(ctx))
	if err != nil {
		return nil, fail(ctx, "ActivateGroup", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("ActivateGroup successful", "group_id", group.ID)
	return connect.NewResponse(&api.GroupResponse{Group: toAPIGroup(group)}), nil
}

// CancelGroup ends a kameti administratively.
func (s *KametiService) CancelGroup(ctx context.Context, req *connect.Request[api.CancelGroupRequest]) (*connect.Response[api.GroupResponse], error) {
	slog.Info("CancelGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.groups.CancelGroup(ctx, req.Msg.GroupID, middleware.GetUserID(ctx))
	if err != nil {
		return nil, fail(ctx, "CancelGroup", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("CancelGroup successful", "group_id", group.ID)
	return connect.NewResponse(&api.GroupResponse{Group: toAPIGroup(group)}), nil
}

// SetCountPolicy resolves a member-count mismatch.
func (s *KametiService) SetCountPolicy(ctx context.Context, req *connect.Request[api.SetCountPolicyRequest]) (*connect.Response[api.GroupResponse], error) {
	slog.Info("SetCountPolicy request received",
		"group_id", req.Msg.GroupID,
		"kind", req.Msg.Policy.Kind,
		"value", req.Msg.Policy.Value,
	)

	policy := models.CountPolicy{Kind: models.CountPolicyKind(req.Msg.Policy.Kind), Value: req.Msg.Policy.Value}
	group, err := s.groups.SetCountPolicy(ctx, req.Msg.GroupID, middleware.GetUserID(ctx), policy)
	if err != nil {
		return nil, fail(ctx, "SetCountPolicy", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("SetCountPolicy successful", "group_id", group.ID, "total_rounds", group.TotalRounds)
	return connect.NewResponse(&api.GroupResponse{Group: toAPIGroup(group)}), nil
}

// InitiatePayment opens the caller's contribution for the current round.
func (s *KametiService) InitiatePayment(ctx context.Context, req *connect.Request[api.InitiatePaymentRequest]) (*connect.Response[api.InitiatePaymentResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("InitiatePayment request received", "group_id", req.Msg.GroupID, "user_id", userID)

	record, err := s.reconciler.InitiatePayment(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail(ctx, "InitiatePayment", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("InitiatePayment successful", "record_id", record.ID, "round", record.Round)
	return connect.NewResponse(&api.InitiatePaymentResponse{Record: toAPIRecord(record)}), nil
}

// ReconcilePayment is the operator's manual fallback for a completed payment.
func (s *KametiService) ReconcilePayment(ctx context.Context, req *connect.Request[api.ReconcilePaymentRequest]) (*connect.Response[api.ReconcilePaymentResponse], error) {
	slog.Info("ReconcilePayment request received",
		"transaction_id", req.Msg.TransactionID,
		"group_id", req.Msg.GroupID,
		"payer", req.Msg.PayerIdentity,
	)

	if middleware.GetRole(ctx) != auth.RoleOperator {
		return nil, fail(ctx, "ReconcilePayment",
			apperrors.New(apperrors.CodePermissionDenied, "manual reconciliation requires the operator role"))
	}

	event := gateway.ManualEvent(req.Msg.TransactionID, req.Msg.PayerIdentity, req.Msg.GroupID,
		req.Msg.Round, req.Msg.Amount, models.PaymentMethod(req.Msg.Method))
	result, err := s.reconciler.Reconcile(ctx, event)
	if err != nil {
		return nil, fail(ctx, "ReconcilePayment", err, "transaction_id", req.Msg.TransactionID)
	}

	resp := &api.ReconcilePaymentResponse{
		Payment:   toAPIPayment(result.Payment),
		Record:    toAPIRecord(result.Record),
		Duplicate: result.Duplicate,
	}
	if result.Readiness != nil {
		resp.Readiness = toAPIReadiness(*result.Readiness)
	}

	slog.Info("ReconcilePayment successful", "payment_id", result.Payment.ID, "duplicate", result.Duplicate)
	return connect.NewResponse(resp), nil
}

// GetRoundReadiness reports whether a round can be paid out and why not.
func (s *KametiService) GetRoundReadiness(ctx context.Context, req *connect.Request[api.GetRoundReadinessRequest]) (*connect.Response[api.GetRoundReadinessResponse], error) {
	slog.Info("GetRoundReadiness request received", "group_id", req.Msg.GroupID, "round", req.Msg.Round)

	readiness, err := s.groups.Readiness(ctx, req.Msg.GroupID, req.Msg.Round)
	if err != nil {
		return nil, fail(ctx, "GetRoundReadiness", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("GetRoundReadiness successful", "group_id", req.Msg.GroupID, "ready", readiness.Ready, "reason", readiness.Reason)
	return connect.NewResponse(&api.GetRoundReadinessResponse{Readiness: toAPIReadiness(readiness)}), nil
}

// ProcessPayout disburses the current round.
func (s *KametiService) ProcessPayout(ctx context.Context, req *connect.Request[api.ProcessPayoutRequest]) (*connect.Response[api.ProcessPayoutResponse], error) {
	slog.Info("ProcessPayout request received", "group_id", req.Msg.GroupID, "recipient_id", req.Msg.RecipientID)

	result, err := s.processor.Process(ctx, req.Msg.GroupID, req.Msg.RecipientID, middleware.GetUserID(ctx))
	if err != nil {
		return nil, fail(ctx, "ProcessPayout", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("ProcessPayout successful",
		"group_id", req.Msg.GroupID,
		"round", result.Payout.Round,
		"recipient_id", result.Payout.RecipientID,
		"amount", result.Payout.Amount,
		"completed", result.IsCompleted,
	)
	return connect.NewResponse(&api.ProcessPayoutResponse{
		Payout:      toAPIPayout(result.Payout),
		NextRound:   result.NextRound,
		IsCompleted: result.IsCompleted,
		GroupStatus: string(result.GroupStatus),
	}), nil
}

// ListPayouts returns the payout ledger of a kameti.
func (s *KametiService) ListPayouts(ctx context.Context, req *connect.Request[api.ListPayoutsRequest]) (*connect.Response[api.ListPayoutsResponse], error) {
	slog.Info("ListPayouts request received", "group_id", req.Msg.GroupID)

	payouts, err := s.groups.ListPayouts(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail(ctx, "ListPayouts", err, "group_id", req.Msg.GroupID)
	}

	out := make([]*api.Payout, len(payouts))
	for i, p := range payouts {
		out[i] = toAPIPayout(p)
	}

	slog.Info("ListPayouts successful", "count", len(out))
	return connect.NewResponse(&api.ListPayoutsResponse{Payouts: out}), nil
}

// ListPaymentRecords returns contribution records of a kameti.
func (s *KametiService) ListPaymentRecords(ctx context.Context, req *connect.Request[api.ListPaymentRecordsRequest]) (*connect.Response[api.ListPaymentRecordsResponse], error) {
	slog.Info("ListPaymentRecords request received", "group_id", req.Msg.GroupID, "round", req.Msg.Round)

	records, err := s.groups.ListPaymentRecords(ctx, req.Msg.GroupID, req.Msg.Round)
	if err != nil {
		return nil, fail(ctx, "ListPaymentRecords", err, "group_id", req.Msg.GroupID)
	}

	out := make([]*api.PaymentRecord, len(records))
	for i, r := range records {
		out[i] = toAPIRecord(r)
	}

	slog.Info("ListPaymentRecords successful", "count", len(out))
	return connect.NewResponse(&api.ListPaymentRecordsResponse{Records: out}), nil
}
