package api

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls KametiService.
type Client struct {
	token string

	createGroup        *connect.Client[CreateGroupRequest, GroupResponse]
	getGroup           *connect.Client[GetGroupRequest, GroupResponse]
	joinGroup          *connect.Client[JoinGroupRequest, GroupResponse]
	activateGroup      *connect.Client[ActivateGroupRequest, GroupResponse]
	cancelGroup        *connect.Client[CancelGroupRequest, GroupResponse]
	setCountPolicy     *connect.Client[SetCountPolicyRequest, GroupResponse]
	initiatePayment    *connect.Client[InitiatePaymentRequest, InitiatePaymentResponse]
	reconcilePayment   *connect.Client[ReconcilePaymentRequest, ReconcilePaymentResponse]
	getRoundReadiness  *connect.Client[GetRoundReadinessRequest, GetRoundReadinessResponse]
	processPayout      *connect.Client[ProcessPayoutRequest, ProcessPayoutResponse]
	listPayouts        *connect.Client[ListPayoutsRequest, ListPayoutsResponse]
	listPaymentRecords *connect.Client[ListPaymentRecordsRequest, ListPaymentRecordsResponse]
}

// NewClient creates a client for the service at baseURL. token, when set, is
// sent as a bearer token on every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &Client{
		token:              token,
		createGroup:        connect.NewClient[CreateGroupRequest, GroupResponse](httpClient, baseURL+CreateGroupProcedure, opts...),
		getGroup:           connect.NewClient[GetGroupRequest, GroupResponse](httpClient, baseURL+GetGroupProcedure, opts...),
		joinGroup:          connect.NewClient[JoinGroupRequest, GroupResponse](httpClient, baseURL+JoinGroupProcedure, opts...),
		activateGroup:      connect.NewClient[ActivateGroupRequest, GroupResponse](httpClient, baseURL+ActivateGroupProcedure, opts...),
		cancelGroup:        connect.NewClient[CancelGroupRequest, GroupResponse](httpClient, baseURL+CancelGroupProcedure, opts...),
		setCountPolicy:     connect.NewClient[SetCountPolicyRequest, GroupResponse](httpClient, baseURL+SetCountPolicyProcedure, opts...),
		initiatePayment:    connect.NewClient[InitiatePaymentRequest, InitiatePaymentResponse](httpClient, baseURL+InitiatePaymentProcedure, opts...),
		reconcilePayment:   connect.NewClient[ReconcilePaymentRequest, ReconcilePaymentResponse](httpClient, baseURL+ReconcilePaymentProcedure, opts...),
		getRoundReadiness:  connect.NewClient[GetRoundReadinessRequest, GetRoundReadinessResponse](httpClient, baseURL+GetRoundReadinessProcedure, opts...),
		processPayout:      connect.NewClient[ProcessPayoutRequest, ProcessPayoutResponse](httpClient, baseURL+ProcessPayoutProcedure, opts...),
		listPayouts:        connect.NewClient[ListPayoutsRequest, ListPayoutsResponse](httpClient, baseURL+ListPayoutsProcedure, opts...),
		listPaymentRecords: connect.NewClient[ListPaymentRecordsRequest, ListPaymentRecordsResponse](httpClient, baseURL+ListPaymentRecordsProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, token string, c *connect.Client[Req, Res], msg *Req) (*Res, error) {
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := c.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*GroupResponse, error) {
	return call(ctx, c.token, c.createGroup, req)
}

func (c *Client) GetGroup(ctx context.Context, req *GetGroupRequest) (*GroupResponse, error) {
	return call(ctx, c.token, c.getGroup, req)
}

func (c *Client) JoinGroup(ctx context.Context, req *JoinGroupRequest) (*GroupResponse, error) {
	return call(ctx, c.token, c.joinGroup, req)
}

func (c *Client) ActivateGroup(ctx context.Context, req *ActivateGroupRequest) (*GroupResponse, error) {
	return call(ctx, c.token, c.activateGroup, req)
}

func (c *Client) CancelGroup(ctx context.Context, req *CancelGroupRequest) (*GroupResponse, error) {
	return call(ctx, c.token, c.cancelGroup, req)
}

func (c *Client) SetCountPolicy(ctx context.Context, req *SetCountPolicyRequest) (*GroupResponse, error) {
	return call(ctx, c.token, c.setCountPolicy, req)
}

func (c *Client) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	return call(ctx, c.token, c.initiatePayment, req)
}

func (c *Client) ReconcilePayment(ctx context.Context, req *ReconcilePaymentRequest) (*ReconcilePaymentResponse, error) {
	return call(ctx, c.token, c.reconcilePayment, req)
}

func (c *Client) GetRoundReadiness(ctx context.Context, req *GetRoundReadinessRequest) (*GetRoundReadinessResponse, error) {
	return call(ctx, c.token, c.getRoundReadiness, req)
}

func (c *Client) ProcessPayout(ctx context.Context, req *ProcessPayoutRequest) (*ProcessPayoutResponse, error) {
	return call(ctx, c.token, c.processPayout, req)
}

func (c *Client) ListPayouts(ctx context.Context, req *ListPayoutsRequest) (*ListPayoutsResponse, error) {
	return call(ctx, c.token, c.listPayouts, req)
}

func (c *Client) ListPaymentRecords(ctx context.Context, req *ListPaymentRecordsRequest) (*ListPaymentRecordsResponse, error) {
	return call(ctx, c.token, c.listPaymentRecords, req)
}
