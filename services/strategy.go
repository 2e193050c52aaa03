package services

import (
	"context"
	"fmt"
	"splitledger/config"
	"splitledger/database"
	"splitledger/ledger"
	"splitledger/models"

	"github.com/google/uuid"
)

// BalanceStrategy is one of the two ledger models. Balances must only read
// through tx, which is a consistent snapshot.
type BalanceStrategy interface {
	Name() string
	Balances(ctx context.Context, tx *database.Store, users []models.User) ([]ledger.Balance, error)
	Split(expense *models.Expense, users []models.User) ([]models.ExpenseShare, error)
	// Portions reports what each non-payer owes for one expense, with
	// Debtor loaded. Used to tell them about it.
	Portions(expense *models.Expense, users []models.User) []models.ExpenseShare
}

// NewStrategy maps a LEDGER_MODE value to its strategy.
func NewStrategy(mode string) BalanceStrategy {
	if mode == config.ModeEqual {
		return equalSplit{}
	}
	return explicitShares{}
}

// equalSplit spreads every expense over the whole group and tracks no shares.
type equalSplit struct{}

func (equalSplit) Name() string { return config.ModeEqual }

func (equalSplit) Split(*models.Expense, []models.User) ([]models.ExpenseShare, error) {
	return nil, nil
}

// Portions splits the expense over the whole group. The shares are not
// stored; the amounts are each member's slice of this expense's fair share.
func (equalSplit) Portions(expense *models.Expense, users []models.User) []models.ExpenseShare {
	parts, err := ledger.SplitEvenly(ledger.FromDecimal(expense.Amount), len(users))
	if err != nil {
		return nil
	}

	var portions []models.ExpenseShare
	for i, u := range users {
		if u.ID == expense.PaidBy {
			continue
		}
		portions = append(portions, models.ExpenseShare{
			ExpenseID:  expense.ID,
			DebtorID:   u.ID,
			Debtor:     u,
			Position:   i,
			AmountOwed: parts[i].Decimal(),
		})
	}
	return portions
}

func (equalSplit) Balances(ctx context.Context, tx *database.Store, users []models.User) ([]ledger.Balance, error) {
	snap, err := settlementTotals(ctx, tx, users)
	if err != nil {
		return nil, err
	}

	total, err := tx.SumExpenses(ctx, database.ExpenseFilter{})
	if err != nil {
		return nil, err
	}
	snap.TotalExpenses = ledger.FromDecimal(total)

	snap.Paid = make(map[uuid.UUID]ledger.Cents, len(users))
	for _, u := range users {
		paid, err := tx.SumExpenses(ctx, database.ExpenseFilter{PaidBy: u.ID})
		if err != nil {
			return nil, err
		}
		snap.Paid[u.ID] = ledger.FromDecimal(paid)
	}

	return ledger.EqualSplitBalances(snap)
}

// explicitShares gives every non-payer a share of each expense and derives
// balances from the shares that are still unpaid.
type explicitShares struct{}

func (explicitShares) Name() string { return config.ModeShares }

func (explicitShares) Split(expense *models.Expense, users []models.User) ([]models.ExpenseShare, error) {
	var debtors []models.User
	for _, u := range users {
		if u.ID != expense.PaidBy {
			debtors = append(debtors, u)
		}
	}
	if len(debtors) == 0 {
		return nil, fmt.Errorf("expense among %d users: %w", len(users), ledger.ErrInvalidSplit)
	}

	parts, err := ledger.SplitEvenly(ledger.FromDecimal(expense.Amount), len(debtors))
	if err != nil {
		return nil, err
	}

	shares := make([]models.ExpenseShare, len(debtors))
	for i, d := range debtors {
		shares[i] = models.ExpenseShare{
			ExpenseID:  expense.ID,
			DebtorID:   d.ID,
			Position:   i,
			AmountOwed: parts[i].Decimal(),
		}
	}
	return shares, nil
}

func (explicitShares) Portions(expense *models.Expense, _ []models.User) []models.ExpenseShare {
	return expense.Shares
}

func (explicitShares) Balances(ctx context.Context, tx *database.Store, users []models.User) ([]ledger.Balance, error) {
	snap, err := settlementTotals(ctx, tx, users)
	if err != nil {
		return nil, err
	}

	open, err := tx.ListOpenShares(ctx)
	if err != nil {
		return nil, err
	}
	for _, share := range open {
		snap.OpenShares = append(snap.OpenShares, ledger.OpenShare{
			Debtor:   share.DebtorID,
			Creditor: share.PayerID,
			Amount:   ledger.FromDecimal(share.AmountOwed),
		})
	}

	return ledger.ShareBalances(snap), nil
}

func settlementTotals(ctx context.Context, tx *database.Store, users []models.User) (ledger.Snapshot, error) {
	snap := ledger.Snapshot{
		Users:      make([]uuid.UUID, len(users)),
		SettledOut: make(map[uuid.UUID]ledger.Cents, len(users)),
		SettledIn:  make(map[uuid.UUID]ledger.Cents, len(users)),
	}

	for i, u := range users {
		snap.Users[i] = u.ID

		out, err := tx.SumSettlements(ctx, database.SettlementFilter{PaidBy: u.ID})
		if err != nil {
			return snap, err
		}
		in, err := tx.SumSettlements(ctx, database.SettlementFilter{PaidTo: u.ID})
		if err != nil {
			return snap, err
		}
		snap.SettledOut[u.ID] = ledger.FromDecimal(out)
		snap.SettledIn[u.ID] = ledger.FromDecimal(in)
	}
	return snap, nil
}
