package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"splitledger/ledger"
	"splitledger/models"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the ledger's persistence layer. A Store returned inside
// Transaction or Snapshot is bound to that transaction.
type Store struct {
	db       *gorm.DB
	snapshot *sql.TxOptions
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, snapshot: snapshotOptions(db)}
}

// DB exposes the underlying handle for health checks and migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn in a read-write transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, snapshot: s.snapshot})
	})
}

// Snapshot runs fn against one consistent read view of the ledger.
func (s *Store) Snapshot(ctx context.Context, fn func(tx *Store) error) error {
	run := func(tx *gorm.DB) error {
		return fn(&Store{db: tx, snapshot: s.snapshot})
	}
	if s.snapshot == nil {
		return s.db.WithContext(ctx).Transaction(run)
	}
	return s.db.WithContext(ctx).Transaction(run, s.snapshot)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ledger.ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// ==========================================
// USERS
// ==========================================

// ListUsers returns every user, oldest first. This order is the ledger's
// canonical user order.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.conn(ctx).Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.conn(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateFCMToken(ctx context.Context, id uuid.UUID, token string) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("fcm_token", token)
	if res.Error != nil {
		return fmt.Errorf("update fcm token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user: %w", ledger.ErrNotFound)
	}
	return nil
}

// ==========================================
// EXPENSES
// ==========================================

// ExpenseFilter narrows expense queries. Zero fields match everything.
type ExpenseFilter struct {
	PaidBy uuid.UUID
}

func (f ExpenseFilter) apply(q *gorm.DB) *gorm.DB {
	if f.PaidBy != uuid.Nil {
		q = q.Where("expenses.paid_by = ?", f.PaidBy)
	}
	return q
}

func (s *Store) SumExpenses(ctx context.Context, f ExpenseFilter) (decimal.Decimal, error) {
	var total decimal.Decimal
	q := f.apply(s.conn(ctx).Model(&models.Expense{}))
	if err := q.Select("COALESCE(SUM(amount), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

func preloadExpense(q *gorm.DB) *gorm.DB {
	return q.Preload("Payer").
		Preload("Shares", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Shares.Debtor")
}

// ListExpenses returns expenses newest first. A limit <= 0 means no limit.
func (s *Store) ListExpenses(ctx context.Context, f ExpenseFilter, limit, offset int) ([]models.Expense, error) {
	q := preloadExpense(f.apply(s.conn(ctx))).Order("expense_date DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var expenses []models.Expense
	if err := q.Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func (s *Store) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	var expense models.Expense
	if err := preloadExpense(s.conn(ctx)).First(&expense, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "expense")
	}
	return &expense, nil
}

// LockExpense loads an expense row and holds a row lock on it until the
// surrounding transaction ends. SQLite ignores the lock clause; its writer
// lock serializes the transaction instead.
func (s *Store) LockExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	var expense models.Expense
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&expense, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "expense")
	}
	return &expense, nil
}

// CreateExpense inserts the expense row only; shares go through CreateShares.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(expense).Error; err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense together with its shares.
func (s *Store) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	if err := s.conn(ctx).Where("expense_id = ?", id).Delete(&models.ExpenseShare{}).Error; err != nil {
		return fmt.Errorf("delete shares: %w", err)
	}
	res := s.conn(ctx).Delete(&models.Expense{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("expense: %w", ledger.ErrNotFound)
	}
	return nil
}

func (s *Store) SetExpenseSettled(ctx context.Context, id uuid.UUID) error {
	err := s.conn(ctx).Model(&models.Expense{}).
		Where("id = ? AND is_fully_settled = ?", id, false).
		Update("is_fully_settled", true).Error
	if err != nil {
		return fmt.Errorf("mark expense settled: %w", err)
	}
	return nil
}

// ==========================================
// SHARES
// ==========================================

func (s *Store) CreateShares(ctx context.Context, shares []models.ExpenseShare) error {
	if len(shares) == 0 {
		return nil
	}
	if err := s.conn(ctx).Omit(clause.Associations).Create(&shares).Error; err != nil {
		return fmt.Errorf("create shares: %w", err)
	}
	return nil
}

func (s *Store) GetShare(ctx context.Context, id uuid.UUID) (*models.ExpenseShare, error) {
	var share models.ExpenseShare
	if err := s.conn(ctx).First(&share, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "share")
	}
	return &share, nil
}

func (s *Store) CountUnpaidShares(ctx context.Context, expenseID uuid.UUID) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.ExpenseShare{}).
		Where("expense_id = ? AND is_paid = ?", expenseID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unpaid shares: %w", err)
	}
	return count, nil
}

// SetSharePaid flips an unpaid share to paid. It reports false when the
// share was already paid.
func (s *Store) SetSharePaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.ExpenseShare{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(map[string]interface{}{"is_paid": true, "paid_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("mark share paid: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// OpenShare is an unpaid share joined with its expense's payer.
type OpenShare struct {
	DebtorID   uuid.UUID
	PayerID    uuid.UUID
	AmountOwed decimal.Decimal
}

func (s *Store) ListOpenShares(ctx context.Context) ([]OpenShare, error) {
	var rows []OpenShare
	err := s.conn(ctx).Table("expense_shares").
		Select("expense_shares.debtor_id, expenses.paid_by AS payer_id, expense_shares.amount_owed").
		Joins("JOIN expenses ON expenses.id = expense_shares.expense_id").
		Where("expense_shares.is_paid = ?", false).
		Order("expenses.created_at ASC, expense_shares.position ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list open shares: %w", err)
	}
	return rows, nil
}

// ==========================================
// SETTLEMENTS
// ==========================================

// SettlementFilter narrows settlement sums. Zero fields match everything.
type SettlementFilter struct {
	PaidBy uuid.UUID
	PaidTo uuid.UUID
}

func (s *Store) SumSettlements(ctx context.Context, f SettlementFilter) (decimal.Decimal, error) {
	q := s.conn(ctx).Model(&models.Settlement{})
	if f.PaidBy != uuid.Nil {
		q = q.Where("paid_by = ?", f.PaidBy)
	}
	if f.PaidTo != uuid.Nil {
		q = q.Where("paid_to = ?", f.PaidTo)
	}

	var total decimal.Decimal
	if err := q.Select("COALESCE(SUM(amount), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum settlements: %w", err)
	}
	return total, nil
}

func (s *Store) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(settlement).Error; err != nil {
		return fmt.Errorf("create settlement: %w", err)
	}
	return nil
}

// ListSettlements returns settlements newest first. A limit <= 0 means no limit.
func (s *Store) ListSettlements(ctx context.Context, limit, offset int) ([]models.Settlement, error) {
	q := s.conn(ctx).Preload("Payer").Preload("Payee").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var settlements []models.Settlement
	if err := q.Find(&settlements).Error; err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return settlements, nil
}

// ==========================================
// ACTIVITY
// ==========================================

func (s *Store) CreateActivity(ctx context.Context, activity *models.Activity) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(activity).Error; err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, limit, offset int) ([]models.Activity, error) {
	q := s.conn(ctx).Preload("User").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var activities []models.Activity
	if err := q.Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return activities, nil
}
