package api

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// ServiceName is the fully-qualified service name.
const ServiceName = "kameti.v1.KametiService"

// Procedure paths.
const (
	CreateGroupProcedure        = "/" + ServiceName + "/CreateGroup"
	GetGroupProcedure           = "/" + ServiceName + "/GetGroup"
	JoinGroupProcedure          = "/" + ServiceName + "/JoinGroup"
	ActivateGroupProcedure      = "/" + ServiceName + "/ActivateGroup"
	CancelGroupProcedure        = "/" + ServiceName + "/CancelGroup"
	SetCountPolicyProcedure     = "/" + ServiceName + "/SetCountPolicy"
	InitiatePaymentProcedure    = "/" + ServiceName + "/InitiatePayment"
	ReconcilePaymentProcedure   = "/" + ServiceName + "/ReconcilePayment"
	GetRoundReadinessProcedure  = "/" + ServiceName + "/GetRoundReadiness"
	ProcessPayoutProcedure      = "/" + ServiceName + "/ProcessPayout"
	ListPayoutsProcedure        = "/" + ServiceName + "/ListPayouts"
	ListPaymentRecordsProcedure = "/" + ServiceName + "/ListPaymentRecords"
)

// JSONCodec marshals plain Go messages with encoding/json. It replaces
// connect's built-in json codec, which only accepts protobuf messages.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return b, nil
}

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

// WithJSON is the codec option handlers and clients must share.
func WithJSON() connect.Option {
	return connect.WithCodec(JSONCodec{})
}
