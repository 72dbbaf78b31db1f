package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/kameti/internal/auth"
	"github.com/mmynk/kameti/internal/engine"
	"github.com/mmynk/kameti/internal/metrics"
	"github.com/mmynk/kameti/internal/middleware"
	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/rounds"
	"github.com/mmynk/kameti/internal/storage/sqlite"
	"github.com/mmynk/kameti/pkg/api"
)

type testEnv struct {
	server *httptest.Server
	store  *sqlite.SQLiteStore
	jwt    *auth.JWTManager
	users  map[string]*models.User
}

// setupTestServer creates a test server with KametiService behind auth.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	// Create temp database
	tmpFile, err := os.CreateTemp("", "kameti-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	groups := engine.NewGroups(store, engine.WithMetrics(m))
	reconciler := engine.NewReconciler(store, engine.WithMetrics(m))
	processor := engine.NewProcessor(store, rounds.NewSelector(rand.New(rand.NewSource(1))), engine.WithMetrics(m))

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	mux := http.NewServeMux()
	NewKametiService(groups, reconciler, processor).Register(mux,
		connect.WithInterceptors(middleware.LoggingInterceptor(m), middleware.RequireAuth(jwtManager)),
	)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	env := &testEnv{server: server, store: store, jwt: jwtManager, users: map[string]*models.User{}}
	for _, name := range []string{"alice", "bob", "carol", "ops"} {
		u := models.NewUser(name+"@example.com", name)
		if err := store.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		env.users[name] = u
	}
	return env
}

func (e *testEnv) client(t *testing.T, name string) *api.Client {
	t.Helper()
	role := auth.RoleMember
	if name == "ops" {
		role = auth.RoleOperator
	}
	token, err := e.jwt.Generate(e.users[name], role)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return api.NewClient(http.DefaultClient, e.server.URL, token)
}

func assertCode(t *testing.T, err error, want connect.Code) *connect.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %T: %v", err, err)
	}
	if connectErr.Code() != want {
		t.Fatalf("expected %v, got %v: %v", want, connectErr.Code(), err)
	}
	return connectErr
}

func createGroup(t *testing.T, owner *api.Client, totalMembers int, members ...*api.Client) *api.Group {
	t.Helper()
	ctx := context.Background()

	resp, err := owner.CreateGroup(ctx, &api.CreateGroupRequest{
		Name:         "Roommates",
		Amount:       1000,
		TotalMembers: totalMembers,
		PayoutOrder:  "sequential",
		Frequency:    "monthly",
		StartDate:    "2026-01-01",
		OwnerJoins:   true,
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	group := resp.Group
	for _, m := range members {
		joined, err := m.JoinGroup(ctx, &api.JoinGroupRequest{GroupID: group.ID})
		if err != nil {
			t.Fatalf("JoinGroup failed: %v", err)
		}
		group = joined.Group
	}
	return group
}

func TestCreateGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.client(t, "alice")

	group := createGroup(t, alice, 3)
	if group.ID == "" {
		t.Error("expected group ID to be generated")
	}
	if group.Status != "pending" || group.CurrentRound != 1 || group.TotalRounds != 3 {
		t.Errorf("unexpected group %+v", group)
	}
	if group.CreatedBy != env.users["alice"].ID || len(group.Members) != 1 {
		t.Errorf("expected alice as owner and first member, got %+v", group)
	}
	if !group.StartDate.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %v", group.StartDate)
	}

	_, err := alice.CreateGroup(context.Background(), &api.CreateGroupRequest{Name: "Bad", Amount: 1000, TotalMembers: 3, StartDate: "01/01/2026"})
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestKametiCycle(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol, ops := env.client(t, "alice"), env.client(t, "bob"), env.client(t, "carol"), env.client(t, "ops")

	group := createGroup(t, alice, 3, bob, carol)
	names := []string{"alice", "bob", "carol"}

	for round := 1; round <= 3; round++ {
		for _, name := range names {
			_, err := ops.ReconcilePayment(ctx, &api.ReconcilePaymentRequest{
				TransactionID: fmt.Sprintf("cash-%d-%s", round, name),
				PayerIdentity: env.users[name].Email,
				Amount:        1000,
				GroupID:       group.ID,
				Method:        "cash",
			})
			if err != nil {
				t.Fatalf("round %d: ReconcilePayment(%s) failed: %v", round, name, err)
			}
		}

		ready, err := bob.GetRoundReadiness(ctx, &api.GetRoundReadinessRequest{GroupID: group.ID})
		if err != nil {
			t.Fatalf("GetRoundReadiness failed: %v", err)
		}
		if !ready.Readiness.Ready || ready.Readiness.PoolAmount != 3000 || ready.Readiness.Reason != "all 3 members have paid" {
			t.Fatalf("round %d: unexpected readiness %+v", round, ready.Readiness)
		}

		_, err = bob.ProcessPayout(ctx, &api.ProcessPayoutRequest{GroupID: group.ID})
		assertCode(t, err, connect.CodePermissionDenied)

		resp, err := alice.ProcessPayout(ctx, &api.ProcessPayoutRequest{GroupID: group.ID})
		if err != nil {
			t.Fatalf("round %d: ProcessPayout failed: %v", round, err)
		}
		if resp.Payout.Amount != 3000 || resp.Payout.RecipientID != env.users[names[round-1]].ID {
			t.Errorf("round %d: unexpected payout %+v", round, resp.Payout)
		}
		if resp.IsCompleted != (round == 3) {
			t.Errorf("round %d: IsCompleted = %v", round, resp.IsCompleted)
		}
	}

	got, err := carol.GetGroup(ctx, &api.GetGroupRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Group.Status != "closed" || got.Group.CurrentRound != 3 {
		t.Errorf("expected closed at round 3, got %s at %d", got.Group.Status, got.Group.CurrentRound)
	}

	_, err = alice.ProcessPayout(ctx, &api.ProcessPayoutRequest{GroupID: group.ID})
	connectErr := assertCode(t, err, connect.CodeFailedPrecondition)
	if code := connectErr.Meta().Get("X-Kameti-Error-Code"); code != "CONFLICT" {
		t.Errorf("expected CONFLICT domain code, got %q", code)
	}

	payouts, err := bob.ListPayouts(ctx, &api.ListPayoutsRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("ListPayouts failed: %v", err)
	}
	records, err := bob.ListPaymentRecords(ctx, &api.ListPaymentRecordsRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("ListPaymentRecords failed: %v", err)
	}
	var out, in int64
	for _, p := range payouts.Payouts {
		out += p.Amount
	}
	for _, r := range records.Records {
		if r.Status == "paid" {
			in += r.Amount
		}
	}
	if len(payouts.Payouts) != 3 || out != in || in != 9000 {
		t.Errorf("conservation broken: %d payouts, out %d, in %d", len(payouts.Payouts), out, in)
	}
}

func TestReconcilePayment(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob, ops := env.client(t, "alice"), env.client(t, "bob"), env.client(t, "ops")
	group := createGroup(t, alice, 2, bob)

	req := &api.ReconcilePaymentRequest{
		TransactionID: "cash-1",
		PayerIdentity: env.users["bob"].ID,
		Amount:        1000,
		GroupID:       group.ID,
	}

	_, err := bob.ReconcilePayment(ctx, req)
	assertCode(t, err, connect.CodePermissionDenied)

	first, err := ops.ReconcilePayment(ctx, req)
	if err != nil {
		t.Fatalf("ReconcilePayment failed: %v", err)
	}
	if first.Duplicate || first.Payment.Source != "manual" || first.Record.Status != "paid" {
		t.Errorf("unexpected response %+v", first)
	}
	if first.Readiness == nil || first.Readiness.Reason != "1/2 members have paid" {
		t.Errorf("unexpected readiness %+v", first.Readiness)
	}

	second, err := ops.ReconcilePayment(ctx, req)
	if err != nil {
		t.Fatalf("ReconcilePayment replay failed: %v", err)
	}
	if !second.Duplicate || second.Payment.ID != first.Payment.ID {
		t.Errorf("expected duplicate of %s, got %+v", first.Payment.ID, second.Payment)
	}

	_, err = ops.ReconcilePayment(ctx, &api.ReconcilePaymentRequest{
		TransactionID: "cash-2", PayerIdentity: env.users["bob"].ID, Amount: 1000, GroupID: "missing",
	})
	assertCode(t, err, connect.CodeNotFound)
}

func TestInitiatePayment(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob := env.client(t, "alice"), env.client(t, "bob")
	group := createGroup(t, alice, 2, bob)

	resp, err := bob.InitiatePayment(ctx, &api.InitiatePaymentRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}
	if resp.Record.Status != "pending" || resp.Record.Round != 1 || resp.Record.PaidAt != nil {
		t.Errorf("unexpected record %+v", resp.Record)
	}

	records, err := alice.ListPaymentRecords(ctx, &api.ListPaymentRecordsRequest{GroupID: group.ID, Round: 1})
	if err != nil {
		t.Fatalf("ListPaymentRecords failed: %v", err)
	}
	if len(records.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records.Records))
	}
}

func TestGroupAdministration(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := env.client(t, "alice"), env.client(t, "bob"), env.client(t, "carol")
	group := createGroup(t, alice, 3, bob)

	ready, err := alice.GetRoundReadiness(ctx, &api.GetRoundReadinessRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("GetRoundReadiness failed: %v", err)
	}
	if ready.Readiness.Ready || ready.Readiness.Reason != "awaiting policy override: 2 of 3 configured members joined" {
		t.Errorf("unexpected readiness %+v", ready.Readiness)
	}

	_, err = bob.SetCountPolicy(ctx, &api.SetCountPolicyRequest{GroupID: group.ID, Policy: api.CountPolicy{Kind: "override_count", Value: 2}})
	assertCode(t, err, connect.CodePermissionDenied)

	updated, err := alice.SetCountPolicy(ctx, &api.SetCountPolicyRequest{GroupID: group.ID, Policy: api.CountPolicy{Kind: "override_count", Value: 2}})
	if err != nil {
		t.Fatalf("SetCountPolicy failed: %v", err)
	}
	if updated.Group.TotalRounds != 2 || updated.Group.CountPolicy.Kind != "override_count" {
		t.Errorf("unexpected group %+v", updated.Group)
	}

	activated, err := alice.ActivateGroup(ctx, &api.ActivateGroupRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("ActivateGroup failed: %v", err)
	}
	if activated.Group.Status != "active" {
		t.Errorf("expected active, got %s", activated.Group.Status)
	}

	_, err = carol.JoinGroup(ctx, &api.JoinGroupRequest{GroupID: group.ID})
	assertCode(t, err, connect.CodeFailedPrecondition)

	cancelled, err := alice.CancelGroup(ctx, &api.CancelGroupRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("CancelGroup failed: %v", err)
	}
	if cancelled.Group.Status != "cancelled" {
		t.Errorf("expected cancelled, got %s", cancelled.Group.Status)
	}
}

func TestAuthRequired(t *testing.T) {
	env := setupTestServer(t)
	anonymous := api.NewClient(http.DefaultClient, env.server.URL, "")

	_, err := anonymous.GetGroup(context.Background(), &api.GetGroupRequest{GroupID: "x"})
	assertCode(t, err, connect.CodeUnauthenticated)

	_, err = env.client(t, "alice").GetGroup(context.Background(), &api.GetGroupRequest{GroupID: "missing"})
	assertCode(t, err, connect.CodeNotFound)
}
