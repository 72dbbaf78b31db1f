package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "kameti-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleGroup() *models.Group {
	return &models.Group{
		Name:         "Office kameti",
		CreatedBy:    "owner",
		Amount:       1000,
		TotalMembers: 2,
		TotalRounds:  2,
		CurrentRound: 1,
		PayoutOrder:  models.PayoutOrderSequential,
		Status:       models.GroupStatusPending,
		Frequency:    models.FrequencyMonthly,
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Members: []models.Member{
			{UserID: "alice", Position: 1},
			{UserID: "bob", Position: 2},
		},
	}
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateGroup generates ID and version", func(t *testing.T) {
		group := sampleGroup()
		if err := store.CreateGroup(ctx, group); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if group.ID == "" {
			t.Error("Expected group ID to be generated")
		}
		if group.Version != 1 {
			t.Errorf("Expected version 1, got %d", group.Version)
		}
		if group.CountPolicy.Kind != models.CountPolicyStrict {
			t.Errorf("Expected strict count policy, got %s", group.CountPolicy.Kind)
		}
	})

	t.Run("GetGroup retrieves members in join order", func(t *testing.T) {
		original := sampleGroup()
		original.Members[0].Position, original.Members[1].Position = 2, 1
		if err := store.CreateGroup(ctx, original); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		retrieved, err := store.GetGroup(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if retrieved.Name != original.Name {
			t.Errorf("Name mismatch: got %s, want %s", retrieved.Name, original.Name)
		}
		if retrieved.Amount != 1000 {
			t.Errorf("Amount mismatch: got %d, want 1000", retrieved.Amount)
		}
		if !retrieved.StartDate.Equal(original.StartDate) {
			t.Errorf("StartDate mismatch: got %v, want %v", retrieved.StartDate, original.StartDate)
		}
		if len(retrieved.Members) != 2 {
			t.Fatalf("Members count mismatch: got %d, want 2", len(retrieved.Members))
		}
		if retrieved.Members[0].UserID != "bob" {
			t.Errorf("Expected bob first by position, got %s", retrieved.Members[0].UserID)
		}
		if retrieved.Members[0].PaymentStatus != models.PaymentStatusUnpaid {
			t.Errorf("Expected unpaid default, got %s", retrieved.Members[0].PaymentStatus)
		}
	})

	t.Run("GetGroup returns ErrNotFound for nonexistent group", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveGroup compares and swaps version", func(t *testing.T) {
		group := sampleGroup()
		if err := store.CreateGroup(ctx, group); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		first, _ := store.GetGroup(ctx, group.ID)
		stale, _ := store.GetGroup(ctx, group.ID)

		first.Status = models.GroupStatusActive
		first.Members[0].PaymentStatus = models.PaymentStatusPaid
		if err := store.SaveGroup(ctx, first); err != nil {
			t.Fatalf("SaveGroup failed: %v", err)
		}
		if first.Version != 2 {
			t.Errorf("Expected version 2 after save, got %d", first.Version)
		}

		stale.CurrentRound = 2
		if err := store.SaveGroup(ctx, stale); !errors.Is(err, storage.ErrVersionConflict) {
			t.Fatalf("Expected ErrVersionConflict for stale write, got %v", err)
		}

		reloaded, _ := store.GetGroup(ctx, group.ID)
		if reloaded.CurrentRound != 1 {
			t.Errorf("Stale write leaked: current round %d", reloaded.CurrentRound)
		}
		if reloaded.Members[0].PaymentStatus != models.PaymentStatusPaid {
			t.Errorf("Expected member update to persist, got %s", reloaded.Members[0].PaymentStatus)
		}
	})

	t.Run("SaveGroup adds joined members", func(t *testing.T) {
		group := sampleGroup()
		group.TotalMembers = 3
		if err := store.CreateGroup(ctx, group); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		group.Members = append(group.Members, models.Member{UserID: "carol", Position: 3})
		if err := store.SaveGroup(ctx, group); err != nil {
			t.Fatalf("SaveGroup failed: %v", err)
		}
		reloaded, _ := store.GetGroup(ctx, group.ID)
		if len(reloaded.Members) != 3 {
			t.Errorf("Expected 3 members, got %d", len(reloaded.Members))
		}
	})

	t.Run("ListGroups returns headers", func(t *testing.T) {
		groups, err := store.ListGroups(ctx)
		if err != nil {
			t.Fatalf("ListGroups failed: %v", err)
		}
		if len(groups) < 4 {
			t.Errorf("Expected at least 4 groups, got %d", len(groups))
		}
	})
}

func TestPayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := sampleGroup()
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	t.Run("CreatePayment rejects duplicate transaction", func(t *testing.T) {
		payment := &models.Payment{
			TransactionID:  "txn-1",
			GroupID:        group.ID,
			UserID:         "alice",
			Round:          1,
			Amount:         1000,
			Method:         models.PaymentMethodCard,
			Source:         models.PaymentSourceGateway,
			GatewayPayload: []byte(`{"id":"txn-1"}`),
		}
		if err := store.CreatePayment(ctx, payment); err != nil {
			t.Fatalf("CreatePayment failed: %v", err)
		}

		dup := *payment
		dup.ID = ""
		dup.Source = models.PaymentSourceManual
		if err := store.CreatePayment(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
			t.Fatalf("Expected ErrDuplicate, got %v", err)
		}

		got, err := store.GetPaymentByTransactionID(ctx, "txn-1")
		if err != nil {
			t.Fatalf("GetPaymentByTransactionID failed: %v", err)
		}
		if got.ID != payment.ID {
			t.Errorf("ID mismatch: got %s, want %s", got.ID, payment.ID)
		}
		if got.Status != models.PaymentStatusCompleted {
			t.Errorf("Expected completed status, got %s", got.Status)
		}
		if string(got.GatewayPayload) != `{"id":"txn-1"}` {
			t.Errorf("Payload mismatch: %s", got.GatewayPayload)
		}
	})

	t.Run("GetPaymentByTransactionID returns nil for unknown", func(t *testing.T) {
		got, err := store.GetPaymentByTransactionID(ctx, "missing")
		if err != nil || got != nil {
			t.Errorf("Expected nil, nil; got %v, %v", got, err)
		}
	})

	t.Run("UpsertPaymentRecord keeps one row per member and round", func(t *testing.T) {
		due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		record := &models.PaymentRecord{
			GroupID: group.ID, UserID: "bob", Round: 1, Amount: 1000,
			Status: models.RecordStatusPending, DueDate: due,
		}
		if err := store.UpsertPaymentRecord(ctx, record); err != nil {
			t.Fatalf("UpsertPaymentRecord failed: %v", err)
		}

		record.MarkPaid("pay-1", due.Add(36*time.Hour))
		if err := store.UpsertPaymentRecord(ctx, record); err != nil {
			t.Fatalf("UpsertPaymentRecord (paid) failed: %v", err)
		}

		records, err := store.ListPaymentRecords(ctx, group.ID, 1)
		if err != nil {
			t.Fatalf("ListPaymentRecords failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
		got := records[0]
		if got.Status != models.RecordStatusPaid || !got.IsLate || got.DaysLate != 2 {
			t.Errorf("Unexpected record state: %+v", got)
		}
	})
}

func TestPayouts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := sampleGroup()
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	payout := &models.Payout{
		GroupID: group.ID, Round: 1, RecipientID: "alice", Amount: 2000,
		Status: models.PayoutStatusCompleted, ProcessedBy: "owner",
	}
	if err := store.CreatePayout(ctx, payout); err != nil {
		t.Fatalf("CreatePayout failed: %v", err)
	}

	again := &models.Payout{
		GroupID: group.ID, Round: 1, RecipientID: "bob", Amount: 2000,
		Status: models.PayoutStatusCompleted, ProcessedBy: "owner",
	}
	if err := store.CreatePayout(ctx, again); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate for second payout in round, got %v", err)
	}

	payouts, err := store.ListPayoutsByGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListPayoutsByGroup failed: %v", err)
	}
	if len(payouts) != 1 || payouts[0].RecipientID != "alice" {
		t.Errorf("Unexpected payouts: %+v", payouts)
	}
}

func TestWithinTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := sampleGroup()
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(q storage.Queries) error {
		g, err := q.GetGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		if err := q.CreatePayout(ctx, &models.Payout{
			GroupID: g.ID, Round: 1, RecipientID: "alice", Amount: 2000,
			Status: models.PayoutStatusCompleted, ProcessedBy: "owner",
		}); err != nil {
			return err
		}
		g.CurrentRound = 2
		if err := q.SaveGroup(ctx, g); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	payouts, _ := store.ListPayoutsByGroup(ctx, group.ID)
	if len(payouts) != 0 {
		t.Errorf("Expected payout to be rolled back, got %d", len(payouts))
	}
	reloaded, _ := store.GetGroup(ctx, group.ID)
	if reloaded.CurrentRound != 1 || reloaded.Version != 1 {
		t.Errorf("Expected group untouched, got round %d version %d", reloaded.CurrentRound, reloaded.Version)
	}
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("Alice@Example.com", "Alice")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail == nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("ID mismatch: got %s, want %s", byEmail.ID, user.ID)
	}

	byID, err := store.GetUserByID(ctx, user.ID)
	if err != nil || byID == nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	missing, err := store.GetUserByID(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for unknown user; got %v, %v", missing, err)
	}

	dup := models.NewUser("alice@example.com", "Other Alice")
	if err := store.CreateUser(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for repeated email, got %v", err)
	}
}
