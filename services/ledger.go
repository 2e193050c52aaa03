package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"splitledger/database"
	"splitledger/ledger"
	"splitledger/metrics"
	"splitledger/models"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cache holds computed ledger views between writes.
type Cache interface {
	Version(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type Options struct {
	Mode     string
	Currency string
	Cache    Cache    // optional
	Notifier Notifier // optional
}

// LedgerService implements the ledger operations on top of a Store. Callers
// pass the authenticated user as actor; the service never authenticates.
type LedgerService struct {
	store    *database.Store
	strategy BalanceStrategy
	cache    Cache
	notifier Notifier
	currency string
	now      func() time.Time
}

func NewLedgerService(store *database.Store, opts Options) *LedgerService {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	currency := opts.Currency
	if currency == "" {
		currency = "EUR"
	}
	return &LedgerService{
		store:    store,
		strategy: NewStrategy(opts.Mode),
		cache:    opts.Cache,
		notifier: notifier,
		currency: currency,
		now:      time.Now,
	}
}

func (s *LedgerService) Mode() string     { return s.strategy.Name() }
func (s *LedgerService) Currency() string { return s.currency }

// ledgerView is everything derived from one snapshot of the ledger.
type ledgerView struct {
	TotalSpent decimal.Decimal      `json:"total_spent"`
	Balances   []models.UserBalance `json:"balances"`
	Plan       []models.Transfer    `json:"plan"`
}

// ComputeBalances returns every user's net balance in user order.
func (s *LedgerService) ComputeBalances(ctx context.Context) (*models.BalanceSummary, error) {
	view, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return &models.BalanceSummary{
		Mode:       s.Mode(),
		Currency:   s.currency,
		TotalSpent: view.TotalSpent,
		Balances:   view.Balances,
	}, nil
}

// ComputeSettlementPlan returns the suggested transfers that clear all balances.
func (s *LedgerService) ComputeSettlementPlan(ctx context.Context) ([]models.Transfer, error) {
	view, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return view.Plan, nil
}

func (s *LedgerService) view(ctx context.Context) (*ledgerView, error) {
	if s.cache == nil {
		metrics.LedgerViews.WithLabelValues("disabled").Inc()
		return s.computeView(ctx)
	}

	version, err := s.cache.Version(ctx)
	if err != nil {
		slog.Warn("Cache version unavailable, computing directly", "error", err)
		metrics.LedgerViews.WithLabelValues("disabled").Inc()
		return s.computeView(ctx)
	}

	key := fmt.Sprintf("view:%s:%d", s.Mode(), version)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached ledgerView
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.LedgerViews.WithLabelValues("hit").Inc()
			return &cached, nil
		}
	}

	metrics.LedgerViews.WithLabelValues("miss").Inc()
	view, err := s.computeView(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(view); err == nil {
		s.cache.Set(ctx, key, data)
	}
	return view, nil
}

func (s *LedgerService) computeView(ctx context.Context) (*ledgerView, error) {
	var (
		users    []models.User
		balances []ledger.Balance
		total    decimal.Decimal
	)

	err := s.store.Snapshot(ctx, func(tx *database.Store) error {
		var err error
		if users, err = tx.ListUsers(ctx); err != nil {
			return err
		}
		if total, err = tx.SumExpenses(ctx, database.ExpenseFilter{}); err != nil {
			return err
		}
		balances, err = s.strategy.Balances(ctx, tx, users)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("compute balances: %w", err)
	}

	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	view := &ledgerView{
		TotalSpent: ledger.FromDecimal(total).Decimal(),
		Balances:   make([]models.UserBalance, 0, len(balances)),
		Plan:       []models.Transfer{},
	}
	for _, b := range balances {
		view.Balances = append(view.Balances, models.UserBalance{
			UserID: b.UserID,
			Name:   names[b.UserID],
			Amount: b.Amount.Decimal(),
		})
	}
	for _, t := range ledger.Settle(balances) {
		view.Plan = append(view.Plan, models.Transfer{
			From:     t.From,
			FromName: names[t.From],
			To:       t.To,
			ToName:   names[t.To],
			Amount:   t.Amount.Decimal(),
			Currency: s.currency,
		})
	}
	return view, nil
}

// invalidate runs after every committed write.
func (s *LedgerService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		slog.Error("Failed to invalidate ledger cache", "error", err)
	}
}

// NewExpense is the input to CreateExpenseWithSplit.
type NewExpense struct {
	Description string
	Amount      decimal.Decimal
	Notes       string
	Date        time.Time
}

// CreateExpenseWithSplit records an expense paid by actor. In shares mode it
// also creates one share per other user; the expense and its shares are
// written together or not at all.
func (s *LedgerService) CreateExpenseWithSplit(ctx context.Context, actor uuid.UUID, in NewExpense) (*models.Expense, error) {
	amount := ledger.FromDecimal(in.Amount)
	if amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	expense := models.Expense{
		ID:          uuid.New(),
		PaidBy:      actor,
		Description: in.Description,
		Amount:      amount.Decimal(),
		Notes:       in.Notes,
		ExpenseDate: date,
	}

	var (
		payer  *models.User
		users  []models.User
		shares []models.ExpenseShare
	)
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		var err error
		if payer, err = tx.GetUser(ctx, actor); err != nil {
			return err
		}
		if users, err = tx.ListUsers(ctx); err != nil {
			return err
		}
		if shares, err = s.strategy.Split(&expense, users); err != nil {
			return err
		}

		if err := tx.CreateExpense(ctx, &expense); err != nil {
			return err
		}
		if err := tx.CreateShares(ctx, shares); err != nil {
			return err
		}
		return tx.CreateActivity(ctx, &models.Activity{
			UserID:      actor,
			Type:        models.ActivityExpenseAdded,
			ReferenceID: expense.ID,
			Description: fmt.Sprintf("%s added \"%s\" (%s %s)", payer.Name, expense.Description, s.currency, amount),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	metrics.ExpensesCreated.WithLabelValues(s.Mode()).Inc()
	slog.Info("Expense added", "expense_id", expense.ID, "payer", actor, "amount", amount.String(), "shares", len(shares))

	created, err := s.store.GetExpense(ctx, expense.ID)
	if err != nil {
		return nil, err
	}
	notice := *created
	notice.Shares = s.strategy.Portions(created, users)
	go s.notifier.ExpenseAdded(notice, s.currency)
	return created, nil
}

// PayShare marks a share paid and closes its expense once no unpaid shares
// remain. Paying an already paid share succeeds without changing anything.
// Only the share's debtor or the expense's payer may do this.
func (s *LedgerService) PayShare(ctx context.Context, actor, shareID uuid.UUID) (*models.ShareStatus, error) {
	var (
		status       models.ShareStatus
		expense      *models.Expense
		payer        *models.User
		newlySettled bool
	)

	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		share, err := tx.GetShare(ctx, shareID)
		if err != nil {
			return err
		}
		// Serializes pay calls on sibling shares of this expense.
		if expense, err = tx.LockExpense(ctx, share.ExpenseID); err != nil {
			return err
		}
		if actor != share.DebtorID && actor != expense.PaidBy {
			return fmt.Errorf("pay share %s: %w", shareID, ledger.ErrForbidden)
		}

		changed, err := tx.SetSharePaid(ctx, share.ID, s.now())
		if err != nil {
			return err
		}
		unpaid, err := tx.CountUnpaidShares(ctx, expense.ID)
		if err != nil {
			return err
		}

		settled := expense.IsFullySettled
		if unpaid == 0 && !settled {
			if err := tx.SetExpenseSettled(ctx, expense.ID); err != nil {
				return err
			}
			settled, newlySettled = true, true
		}

		status = models.ShareStatus{
			ShareID:             share.ID,
			ExpenseID:           expense.ID,
			IsPaid:              true,
			AlreadyPaid:         !changed,
			UnpaidShares:        unpaid,
			ExpenseFullySettled: settled,
		}

		if changed {
			err := tx.CreateActivity(ctx, &models.Activity{
				UserID:      actor,
				Type:        models.ActivitySharePaid,
				ReferenceID: share.ID,
				Description: fmt.Sprintf("Share of %s %s for \"%s\" paid", s.currency, ledger.FromDecimal(share.AmountOwed), expense.Description),
			})
			if err != nil {
				return err
			}
		}
		if newlySettled {
			if payer, err = tx.GetUser(ctx, expense.PaidBy); err != nil {
				return err
			}
			return tx.CreateActivity(ctx, &models.Activity{
				UserID:      expense.PaidBy,
				Type:        models.ActivityExpenseSettled,
				ReferenceID: expense.ID,
				Description: fmt.Sprintf("\"%s\" is fully settled", expense.Description),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if status.AlreadyPaid {
		metrics.SharesPaid.WithLabelValues("already_paid").Inc()
	} else {
		s.invalidate(ctx)
		metrics.SharesPaid.WithLabelValues("paid").Inc()
		slog.Info("Share paid", "share_id", shareID, "expense_id", status.ExpenseID, "unpaid", status.UnpaidShares)
	}

	if newlySettled {
		metrics.ExpensesSettled.Inc()
		go s.notifier.ExpenseSettled(*expense, *payer)
	}
	return &status, nil
}

// RecordSettlement records a direct payment from actor to paidTo.
func (s *LedgerService) RecordSettlement(ctx context.Context, actor, paidTo uuid.UUID, amount decimal.Decimal, notes string) (*models.Settlement, error) {
	cents := ledger.FromDecimal(amount)
	if cents <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	if actor == paidTo {
		return nil, ledger.ErrSelfSettlement
	}

	settlement := models.Settlement{
		PaidBy: actor,
		PaidTo: paidTo,
		Amount: cents.Decimal(),
		Notes:  notes,
	}

	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		payer, err := tx.GetUser(ctx, actor)
		if err != nil {
			return err
		}
		payee, err := tx.GetUser(ctx, paidTo)
		if err != nil {
			return err
		}
		if err := tx.CreateSettlement(ctx, &settlement); err != nil {
			return err
		}
		settlement.Payer, settlement.Payee = *payer, *payee

		return tx.CreateActivity(ctx, &models.Activity{
			UserID:      actor,
			Type:        models.ActivitySettlement,
			ReferenceID: settlement.ID,
			Description: fmt.Sprintf("%s paid %s %s %s", payer.Name, payee.Name, s.currency, cents),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	metrics.SettlementsRecorded.Inc()
	slog.Info("Settlement recorded", "settlement_id", settlement.ID, "from", actor, "to", paidTo, "amount", cents.String())

	go s.notifier.SettlementRecorded(settlement, s.currency)
	return &settlement, nil
}

// DeleteExpense removes an expense and its shares. Only the payer may delete.
func (s *LedgerService) DeleteExpense(ctx context.Context, actor, id uuid.UUID) error {
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		expense, err := tx.LockExpense(ctx, id)
		if err != nil {
			return err
		}
		if expense.PaidBy != actor {
			return fmt.Errorf("delete expense %s: %w", id, ledger.ErrForbidden)
		}
		if err := tx.DeleteExpense(ctx, id); err != nil {
			return err
		}
		return tx.CreateActivity(ctx, &models.Activity{
			UserID:      actor,
			Type:        models.ActivityExpenseDeleted,
			ReferenceID: id,
			Description: fmt.Sprintf("\"%s\" (%s %s) deleted", expense.Description, s.currency, ledger.FromDecimal(expense.Amount)),
		})
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	slog.Info("Expense deleted", "expense_id", id, "by", actor)
	return nil
}

// ListExpenses returns expenses newest first; mine limits them to actor's.
func (s *LedgerService) ListExpenses(ctx context.Context, actor uuid.UUID, mine bool, limit, offset int) ([]models.Expense, error) {
	filter := database.ExpenseFilter{}
	if mine {
		filter.PaidBy = actor
	}
	return s.store.ListExpenses(ctx, filter, limit, offset)
}

func (s *LedgerService) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *LedgerService) SettlementHistory(ctx context.Context, limit, offset int) ([]models.Settlement, error) {
	return s.store.ListSettlements(ctx, limit, offset)
}

func (s *LedgerService) Activity(ctx context.Context, limit, offset int) ([]models.Activity, error) {
	return s.store.ListActivity(ctx, limit, offset)
}

func (s *LedgerService) Users(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// RegisterUser adds a member to the group. Every balance depends on the
// member set, so cached views are dropped once the insert commits.
func (s *LedgerService) RegisterUser(ctx context.Context, user *models.User) error {
	if err := s.store.CreateUser(ctx, user); err != nil {
		return err
	}
	s.invalidate(ctx)
	slog.Info("User registered", "user_id", user.ID, "email", user.Email)
	return nil
}

// Dashboard bundles the caller's balance, the settlement plan and the 20
// most recent expenses.
func (s *LedgerService) Dashboard(ctx context.Context, actor uuid.UUID) (*models.DashboardResponse, error) {
	view, err := s.view(ctx)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpenses(ctx, database.ExpenseFilter{}, 20, 0)
	if err != nil {
		return nil, err
	}

	resp := &models.DashboardResponse{
		MyBalance:         decimal.Zero,
		Currency:          s.currency,
		SuggestedPayments: view.Plan,
		Expenses:          make([]models.ExpenseResponse, 0, len(expenses)),
	}
	for _, b := range view.Balances {
		if b.UserID == actor {
			resp.MyBalance = b.Amount
		}
	}
	for i := range expenses {
		resp.Expenses = append(resp.Expenses, expenses[i].ToResponse(actor, s.currency))
	}
	return resp, nil
}
