package services

import (
	"context"
	"errors"
	"path/filepath"
	"splitledger/config"
	"splitledger/database"
	"splitledger/ledger"
	"splitledger/models"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	db, err := database.Connect(&config.Config{
		DBDriver:    "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel:    "error",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return database.NewStore(db)
}

func seedUsers(t *testing.T, store *database.Store, names ...string) []models.User {
	t.Helper()
	users := make([]models.User, len(names))
	for i, name := range names {
		users[i] = models.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
		if err := store.CreateUser(context.Background(), &users[i]); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}
	return users
}

func addExpense(t *testing.T, svc *LedgerService, payer models.User, amount string) *models.Expense {
	t.Helper()
	e, err := svc.CreateExpenseWithSplit(context.Background(), payer.ID, NewExpense{
		Description: "dinner",
		Amount:      decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatalf("CreateExpenseWithSplit: %v", err)
	}
	return e
}

func balancesByName(t *testing.T, svc *LedgerService) map[string]ledger.Cents {
	t.Helper()
	summary, err := svc.ComputeBalances(context.Background())
	if err != nil {
		t.Fatalf("ComputeBalances: %v", err)
	}
	out := make(map[string]ledger.Cents, len(summary.Balances))
	for _, b := range summary.Balances {
		out[b.Name] = ledger.FromDecimal(b.Amount)
	}
	return out
}

// recordingNotifier captures events delivered on the notifier goroutines.
type recordingNotifier struct {
	added   chan models.Expense
	settled chan uuid.UUID
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		added:   make(chan models.Expense, 16),
		settled: make(chan uuid.UUID, 16),
	}
}

func (n *recordingNotifier) ExpenseAdded(e models.Expense, _ string) {
	n.added <- e
}

func (n *recordingNotifier) SettlementRecorded(models.Settlement, string) {}

func (n *recordingNotifier) ExpenseSettled(e models.Expense, _ models.User) {
	n.settled <- e.ID
}

func TestEqualSplitFourUsers(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B", "C", "D")
	svc := NewLedgerService(store, Options{Mode: config.ModeEqual})

	e := addExpense(t, svc, users[0], "100")
	if len(e.Shares) != 0 {
		t.Errorf("equal mode created %d shares, want 0", len(e.Shares))
	}

	got := balancesByName(t, svc)
	want := map[string]ledger.Cents{"A": 7500, "B": -2500, "C": -2500, "D": -2500}
	for name, amount := range want {
		if got[name] != amount {
			t.Errorf("balance[%s] = %s, want %s", name, got[name], amount)
		}
	}

	plan, err := svc.ComputeSettlementPlan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 3 {
		t.Fatalf("plan has %d transfers, want 3", len(plan))
	}
	for _, tr := range plan {
		if tr.To != users[0].ID || ledger.FromDecimal(tr.Amount) != 2500 {
			t.Errorf("unexpected transfer %s -> %s %s", tr.FromName, tr.ToName, tr.Amount)
		}
	}
}

func TestEqualSplitSettlementClearsDebt(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B")
	svc := NewLedgerService(store, Options{Mode: config.ModeEqual})
	ctx := context.Background()

	addExpense(t, svc, users[0], "10.01")
	if _, err := svc.RecordSettlement(ctx, users[1].ID, users[0].ID, decimal.RequireFromString("5.00"), ""); err != nil {
		t.Fatal(err)
	}

	got := balancesByName(t, svc)
	// 10.01 splits 5.01/5.00 with the extra cent on the first user.
	if got["A"] != 0 || got["B"] != 0 {
		t.Errorf("balances = %v, want all zero", got)
	}

	plan, err := svc.ComputeSettlementPlan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 0 {
		t.Errorf("plan = %+v, want empty", plan)
	}
}

func TestExplicitSharesLifecycle(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B", "C")
	a, b, c := users[0], users[1], users[2]
	notifier := newRecordingNotifier()
	svc := NewLedgerService(store, Options{Mode: config.ModeShares, Notifier: notifier})
	ctx := context.Background()

	e := addExpense(t, svc, a, "90")
	if len(e.Shares) != 2 {
		t.Fatalf("got %d shares, want 2", len(e.Shares))
	}
	shareOf := make(map[uuid.UUID]uuid.UUID)
	for _, s := range e.Shares {
		if ledger.FromDecimal(s.AmountOwed) != 4500 {
			t.Errorf("share for %s = %s, want 45.00", s.Debtor.Name, s.AmountOwed)
		}
		shareOf[s.DebtorID] = s.ID
	}

	got := balancesByName(t, svc)
	if got["A"] != 9000 || got["B"] != -4500 || got["C"] != -4500 {
		t.Errorf("balances = %v", got)
	}

	status, err := svc.PayShare(ctx, b.ID, shareOf[b.ID])
	if err != nil {
		t.Fatal(err)
	}
	if status.AlreadyPaid || status.ExpenseFullySettled || status.UnpaidShares != 1 {
		t.Errorf("after paying B: %+v", status)
	}

	// Paying again changes nothing.
	status, err = svc.PayShare(ctx, b.ID, shareOf[b.ID])
	if err != nil {
		t.Fatal(err)
	}
	if !status.AlreadyPaid || status.ExpenseFullySettled {
		t.Errorf("re-paying B: %+v", status)
	}

	// The payer may mark a debtor's share as paid.
	status, err = svc.PayShare(ctx, a.ID, shareOf[c.ID])
	if err != nil {
		t.Fatal(err)
	}
	if !status.ExpenseFullySettled || status.UnpaidShares != 0 {
		t.Errorf("after paying C: %+v", status)
	}

	select {
	case id := <-notifier.settled:
		if id != e.ID {
			t.Errorf("settled notification for %s, want %s", id, e.ID)
		}
	case <-time.After(2 * time.Second):
		t.Error("no settled notification")
	}

	stored, err := svc.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsFullySettled {
		t.Error("expense not marked fully settled")
	}

	got = balancesByName(t, svc)
	for name, amount := range got {
		if amount != 0 {
			t.Errorf("balance[%s] = %s after all shares paid", name, amount)
		}
	}
}

func TestExplicitSharesRemainderGoesToFirstDebtors(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B", "C", "D")
	svc := NewLedgerService(store, Options{Mode: config.ModeShares})

	e := addExpense(t, svc, users[0], "100")
	want := []ledger.Cents{3334, 3333, 3333}
	if len(e.Shares) != len(want) {
		t.Fatalf("got %d shares, want %d", len(e.Shares), len(want))
	}
	var sum ledger.Cents
	for i, s := range e.Shares {
		got := ledger.FromDecimal(s.AmountOwed)
		if got != want[i] {
			t.Errorf("share[%d] = %s, want %s", i, got, want[i])
		}
		if s.DebtorID != users[i+1].ID {
			t.Errorf("share[%d] debtor = %s, want %s", i, s.Debtor.Name, users[i+1].Name)
		}
		sum += got
	}
	if sum != 10000 {
		t.Errorf("shares sum to %s, want 100.00", sum)
	}
}

func TestExplicitSharesNeedsAnotherUser(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A")
	svc := NewLedgerService(store, Options{Mode: config.ModeShares})
	ctx := context.Background()

	_, err := svc.CreateExpenseWithSplit(ctx, users[0].ID, NewExpense{Description: "solo", Amount: decimal.NewFromInt(10)})
	if !errors.Is(err, ledger.ErrInvalidSplit) {
		t.Fatalf("err = %v, want ErrInvalidSplit", err)
	}

	expenses, err := svc.ListExpenses(ctx, users[0].ID, false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(expenses) != 0 {
		t.Errorf("rejected expense left %d rows", len(expenses))
	}
}

func TestCreateExpenseRejectsNonPositiveAmount(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B")
	svc := NewLedgerService(store, Options{Mode: config.ModeShares})

	for _, amount := range []string{"0", "-5", "0.004"} {
		_, err := svc.CreateExpenseWithSplit(context.Background(), users[0].ID, NewExpense{
			Description: "bad",
			Amount:      decimal.RequireFromString(amount),
		})
		if !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("amount %s: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestPayShareErrors(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B", "C")
	svc := NewLedgerService(store, Options{Mode: config.ModeShares})
	ctx := context.Background()

	e := addExpense(t, svc, users[0], "30")
	var bShare uuid.UUID
	for _, s := range e.Shares {
		if s.DebtorID == users[1].ID {
			bShare = s.ID
		}
	}

	if _, err := svc.PayShare(ctx, users[1].ID, uuid.New()); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("unknown share: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.PayShare(ctx, users[2].ID, bShare); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("third party: err = %v, want ErrForbidden", err)
	}

	share, err := store.GetShare(ctx, bShare)
	if err != nil {
		t.Fatal(err)
	}
	if share.IsPaid {
		t.Error("forbidden payment marked the share paid")
	}
}

func TestPayShareConcurrent(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B", "C", "D", "E")
	notifier := newRecordingNotifier()
	svc := NewLedgerService(store, Options{Mode: config.ModeShares, Notifier: notifier})
	ctx := context.Background()

	e := addExpense(t, svc, users[0], "100")

	var (
		mu          sync.Mutex
		settled     int
		alreadyPaid int
	)
	var g errgroup.Group
	for _, share := range e.Shares {
		for attempt := 0; attempt < 2; attempt++ {
			share := share
			g.Go(func() error {
				status, err := svc.PayShare(ctx, share.DebtorID, share.ID)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if status.AlreadyPaid {
					alreadyPaid++
				}
				if status.ExpenseFullySettled && !status.AlreadyPaid && status.UnpaidShares == 0 {
					settled++
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if alreadyPaid != len(e.Shares) {
		t.Errorf("already paid = %d, want %d", alreadyPaid, len(e.Shares))
	}
	if settled != 1 {
		t.Errorf("%d payments closed the expense, want exactly 1", settled)
	}

	select {
	case <-notifier.settled:
	case <-time.After(2 * time.Second):
		t.Fatal("no settled notification")
	}
	select {
	case <-notifier.settled:
		t.Error("expense settled notification sent twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecordSettlement(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B", "C")
	svc := NewLedgerService(store, Options{Mode: config.ModeShares})
	ctx := context.Background()
	a, b := users[0], users[1]

	if _, err := svc.RecordSettlement(ctx, a.ID, a.ID, decimal.NewFromInt(5), ""); !errors.Is(err, ledger.ErrSelfSettlement) {
		t.Errorf("self: err = %v, want ErrSelfSettlement", err)
	}
	if _, err := svc.RecordSettlement(ctx, b.ID, a.ID, decimal.Zero, ""); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero: err = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.RecordSettlement(ctx, b.ID, uuid.New(), decimal.NewFromInt(5), ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("unknown payee: err = %v, want ErrNotFound", err)
	}

	addExpense(t, svc, a, "90")
	st, err := svc.RecordSettlement(ctx, b.ID, a.ID, decimal.RequireFromString("45"), "cash")
	if err != nil {
		t.Fatal(err)
	}
	if st.Payer.Name != "B" || st.Payee.Name != "A" {
		t.Errorf("settlement parties = %s -> %s", st.Payer.Name, st.Payee.Name)
	}

	got := balancesByName(t, svc)
	if got["A"] != 4500 || got["B"] != 0 || got["C"] != -4500 {
		t.Errorf("balances = %v", got)
	}

	history, err := svc.SettlementHistory(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("history has %d settlements, want 1", len(history))
	}
}

func TestDeleteExpense(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B")
	svc := NewLedgerService(store, Options{Mode: config.ModeShares})
	ctx := context.Background()

	e := addExpense(t, svc, users[0], "20")
	if err := svc.DeleteExpense(ctx, users[1].ID, e.ID); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("non-payer delete: err = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteExpense(ctx, users[0].ID, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetExpense(ctx, e.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("GetExpense after delete: err = %v", err)
	}

	got := balancesByName(t, svc)
	if got["A"] != 0 || got["B"] != 0 {
		t.Errorf("balances after delete = %v", got)
	}

	activity, err := svc.Activity(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(activity) != 2 || activity[0].Type != models.ActivityExpenseDeleted {
		t.Errorf("activity = %+v, want added then deleted", activity)
	}
}

func TestListExpensesMine(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B")
	svc := NewLedgerService(store, Options{Mode: config.ModeEqual})
	ctx := context.Background()

	addExpense(t, svc, users[0], "10")
	addExpense(t, svc, users[1], "20")
	addExpense(t, svc, users[0], "30")

	mine, err := svc.ListExpenses(ctx, users[0].ID, true, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	all, err := svc.ListExpenses(ctx, users[0].ID, false, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || len(all) != 2 {
		t.Errorf("mine = %d, all(limit 2) = %d; want 2, 2", len(mine), len(all))
	}

	dash, err := svc.Dashboard(ctx, users[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if ledger.FromDecimal(dash.MyBalance) != 1000 {
		t.Errorf("dashboard balance = %s, want 10.00", dash.MyBalance)
	}
	if len(dash.Expenses) != 3 || len(dash.SuggestedPayments) != 1 {
		t.Errorf("dashboard = %d expenses, %d payments", len(dash.Expenses), len(dash.SuggestedPayments))
	}
}

// memoryCache is a Cache kept in a map.
type memoryCache struct {
	mu      sync.Mutex
	version int64
	entries map[string][]byte
	hits    int
}

func (c *memoryCache) Version(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

func (c *memoryCache) Bump(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return data, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func TestCachedViewsInvalidatedByWrites(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B")
	cache := &memoryCache{entries: map[string][]byte{}}
	svc := NewLedgerService(store, Options{Mode: config.ModeShares, Cache: cache})

	addExpense(t, svc, users[0], "40")
	first := balancesByName(t, svc)
	second := balancesByName(t, svc)
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}
	if first["A"] != second["A"] || second["A"] != 4000 {
		t.Errorf("cached balance = %s, want 40.00", second["A"])
	}

	addExpense(t, svc, users[1], "10")
	got := balancesByName(t, svc)
	if got["A"] != 3000 || got["B"] != -3000 {
		t.Errorf("balances after write = %v, want A 30.00, B -30.00", got)
	}
}

func TestRegisterUserInvalidatesCachedViews(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store, "A", "B", "C")
	cache := &memoryCache{entries: map[string][]byte{}}
	svc := NewLedgerService(store, Options{Mode: config.ModeEqual, Cache: cache})
	ctx := context.Background()

	addExpense(t, svc, users[0], "90")
	if got := balancesByName(t, svc); got["A"] != 6000 {
		t.Fatalf("A = %s before new member, want 60.00", got["A"])
	}

	d := models.User{Name: "D", Email: "d@example.com", PasswordHash: "x"}
	if err := svc.RegisterUser(ctx, &d); err != nil {
		t.Fatal(err)
	}

	got := balancesByName(t, svc)
	want := map[string]ledger.Cents{"A": 6750, "B": -2250, "C": -2250, "D": -2250}
	if len(got) != len(want) {
		t.Fatalf("got %d balances, want %d", len(got), len(want))
	}
	for name, amount := range want {
		if got[name] != amount {
			t.Errorf("balance[%s] = %s, want %s", name, got[name], amount)
		}
	}

	plan, err := svc.ComputeSettlementPlan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 3 {
		t.Errorf("plan has %d transfers, want 3", len(plan))
	}
}

func TestExpenseAddedNotifiesEveryMember(t *testing.T) {
	cases := []struct {
		mode    string
		stored  bool
		amounts []ledger.Cents
	}{
		{config.ModeEqual, false, []ledger.Cents{2500, 2500, 2500}},
		{config.ModeShares, true, []ledger.Cents{3334, 3333, 3333}},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			store := newTestStore(t)
			users := seedUsers(t, store, "A", "B", "C", "D")
			notifier := newRecordingNotifier()
			svc := NewLedgerService(store, Options{Mode: tc.mode, Notifier: notifier})

			e := addExpense(t, svc, users[0], "100")

			var notice models.Expense
			select {
			case notice = <-notifier.added:
			case <-time.After(2 * time.Second):
				t.Fatal("no expense notification")
			}
			if notice.ID != e.ID {
				t.Fatalf("notification for %s, want %s", notice.ID, e.ID)
			}
			if len(notice.Shares) != len(tc.amounts) {
				t.Fatalf("notified %d members, want %d", len(notice.Shares), len(tc.amounts))
			}
			for i, share := range notice.Shares {
				if share.DebtorID != users[i+1].ID || share.Debtor.Name != users[i+1].Name {
					t.Errorf("portion[%d] debtor = %q, want %s", i, share.Debtor.Name, users[i+1].Name)
				}
				if got := ledger.FromDecimal(share.AmountOwed); got != tc.amounts[i] {
					t.Errorf("portion[%d] = %s, want %s", i, got, tc.amounts[i])
				}
				if stored := share.ID != uuid.Nil; stored != tc.stored {
					t.Errorf("portion[%d] stored = %v, want %v", i, stored, tc.stored)
				}
			}
		})
	}
}
