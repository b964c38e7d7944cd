package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/ledger"
	"github.com/orchardlane/backend/internal/loyalty"
	"github.com/orchardlane/backend/internal/models"
)

// ---------------------------------------------------------------------------
// noopTx satisfies pgx.Tx for services that open transactions against mocks.
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(ctx context.Context) error          { return nil }
func (noopTx) Rollback(ctx context.Context) error        { return nil }
func (noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (noopTx) Conn() *pgx.Conn                                               { return nil }

type fakePool struct{}

func (fakePool) Begin(ctx context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// ---------------------------------------------------------------------------
// In-memory user and ledger entry stores.
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

// sweepRecorder captures enqueued milestone sweeps.
type sweepRecorder struct {
	mu   sync.Mutex
	seen []loyalty.MilestoneSweepArgs
	inTx int
}

func (r *sweepRecorder) insert(_ context.Context, tx pgx.Tx, args loyalty.MilestoneSweepArgs) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, args)
	if tx != nil {
		r.inTx++
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func newOrderService(users *mockUsers, entries *mockEntries, sweeps *sweepRecorder) *Service {
	return NewService(fakePool{}, ledger.NewService(users, entries), sweeps.insert, 1, nil)
}

func TestCompleteOrder(t *testing.T) {
	userID := uuid.New()
	users := newMockUsers(&models.User{ID: userID, LoyaltyPoints: 10})
	entries := &mockEntries{}
	sweeps := &sweepRecorder{}
	svc := newOrderService(users, entries, sweeps)

	// Points accrue on the whole-pound part only: £24.99 earns 24.
	res, err := svc.CompleteOrder(context.Background(), userID, "ORD-2001", decimal.RequireFromString("24.99"))
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if res.PointsEarned != 24 || res.NewBalance != 34 {
		t.Errorf("result: %+v, want 24 earned / 34 balance", res)
	}

	history, _ := entries.ListByUserID(context.Background(), userID)
	if len(history) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(history))
	}
	e := history[0]
	if e.EntryType != models.EntryEarned || e.PointsDelta != 24 || e.BalanceAfter != 34 {
		t.Errorf("EARNED entry: %+v", e)
	}

	// The sweep rides the same transaction as the credit.
	if len(sweeps.seen) != 1 || sweeps.seen[0].UserID != userID {
		t.Fatalf("sweeps enqueued: %+v", sweeps.seen)
	}
	if sweeps.inTx != 1 {
		t.Error("sweep must be inserted within the order transaction")
	}
}

func TestCompleteOrder_SubPoundTotal(t *testing.T) {
	userID := uuid.New()
	users := newMockUsers(&models.User{ID: userID, LoyaltyPoints: 5})
	entries := &mockEntries{}
	sweeps := &sweepRecorder{}
	svc := newOrderService(users, entries, sweeps)

	res, err := svc.CompleteOrder(context.Background(), userID, "ORD-2002", decimal.RequireFromString("0.99"))
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if res.PointsEarned != 0 || res.NewBalance != 5 {
		t.Errorf("result: %+v, want 0 earned / balance 5", res)
	}
	// Nothing to sweep and nothing appended.
	if len(sweeps.seen) != 0 {
		t.Errorf("zero-point order enqueued a sweep")
	}
	if history, _ := entries.ListByUserID(context.Background(), userID); len(history) != 0 {
		t.Errorf("zero-point order appended %d ledger entries", len(history))
	}
}

func TestCompleteOrder_RejectsBadInput(t *testing.T) {
	userID := uuid.New()
	users := newMockUsers(&models.User{ID: userID})
	svc := newOrderService(users, &mockEntries{}, &sweepRecorder{})
	ctx := context.Background()

	if _, err := svc.CompleteOrder(ctx, userID, "", decimal.NewFromInt(10)); err == nil {
		t.Error("missing reference should be rejected")
	}
	if _, err := svc.CompleteOrder(ctx, userID, "ORD-1", decimal.NewFromInt(-1)); err == nil {
		t.Error("negative total should be rejected")
	}
}
