package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orchardlane/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for UserStore and EntryStore.
// ---------------------------------------------------------------------------

type mockUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUsers(us ...*models.User) *mockUsers {
	m := &mockUsers{users: make(map[uuid.UUID]*models.User)}
	for _, u := range us {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.User, error) {
	return m.GetByID(ctx, id)
}

func (m *mockUsers) AddPoints(_ context.Context, _ pgx.Tx, id uuid.UUID, points int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, fmt.Errorf("user %s not found", id)
	}
	u.LoyaltyPoints += points
	return u.LoyaltyPoints, nil
}

func (m *mockUsers) DeductPoints(_ context.Context, _ pgx.Tx, id uuid.UUID, points int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, fmt.Errorf("user %s not found", id)
	}
	if u.LoyaltyPoints < points {
		return 0, pgx.ErrNoRows
	}
	u.LoyaltyPoints -= points
	return u.LoyaltyPoints, nil
}

type mockEntries struct {
	mu      sync.Mutex
	entries []*models.LoyaltyTransaction
}

func (m *mockEntries) InsertTx(_ context.Context, _ pgx.Tx, t *models.LoyaltyTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockEntries) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.LoyaltyTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LoyaltyTransaction
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEntries) sumDeltas(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, e := range m.entries {
		if e.UserID == userID {
			sum += e.PointsDelta
		}
	}
	return sum
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreditDebitNote(t *testing.T) {
	userID := uuid.New()
	users := newMockUsers(&models.User{ID: userID, LoyaltyPoints: 0})
	entries := &mockEntries{}
	svc := NewService(users, entries)
	ctx := context.Background()

	entry, err := svc.Credit(ctx, nil, userID, 120, models.EntryEarned, "Order ORD-1: earned 120 points")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if entry.PointsDelta != 120 || entry.BalanceAfter != 120 || entry.EntryType != models.EntryEarned {
		t.Errorf("credit entry: %+v", entry)
	}

	entry, err = svc.Debit(ctx, nil, userID, 20, models.EntryAdjusted, "correction")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if entry.PointsDelta != -20 || entry.BalanceAfter != 100 {
		t.Errorf("debit entry: %+v", entry)
	}

	entry, err = svc.Note(ctx, nil, userID, models.EntryMilestoneAward, "Reached 100 point milestone")
	if err != nil {
		t.Fatalf("Note: %v", err)
	}
	if entry.PointsDelta != 0 || entry.BalanceAfter != 100 {
		t.Errorf("note entry: %+v", entry)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance: got %d, want 100", balance)
	}
	if sum := entries.sumDeltas(userID); sum != balance {
		t.Errorf("ledger sum %d diverged from balance %d", sum, balance)
	}

	history, err := svc.History(ctx, userID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("history length: got %d, want 3", len(history))
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	userID := uuid.New()
	users := newMockUsers(&models.User{ID: userID, LoyaltyPoints: 50})
	entries := &mockEntries{}
	svc := NewService(users, entries)
	ctx := context.Background()

	if _, err := svc.Debit(ctx, nil, userID, 51, models.EntryRedeemed, "too much"); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	// No entry is appended for a failed debit.
	if sum := entries.sumDeltas(userID); sum != 0 {
		t.Errorf("failed debit appended entries: sum %d", sum)
	}

	// Exact balance is allowed.
	if _, err := svc.Debit(ctx, nil, userID, 50, models.EntryRedeemed, "all of it"); err != nil {
		t.Errorf("exact-balance debit: %v", err)
	}
}

func TestRejectsInvalidAmounts(t *testing.T) {
	userID := uuid.New()
	users := newMockUsers(&models.User{ID: userID, LoyaltyPoints: 100})
	svc := NewService(users, &mockEntries{})
	ctx := context.Background()

	if _, err := svc.Credit(ctx, nil, userID, -5, models.EntryEarned, "negative"); err == nil {
		t.Error("negative credit should be rejected")
	}
	if _, err := svc.Debit(ctx, nil, userID, 0, models.EntryRedeemed, "zero"); err == nil {
		t.Error("zero debit should be rejected")
	}
	if _, err := svc.Debit(ctx, nil, userID, -5, models.EntryRedeemed, "negative"); err == nil {
		t.Error("negative debit should be rejected")
	}
}
