package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	mu    sync.RWMutex
	Users map[uuid.UUID]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[uuid.UUID]*domain.User),
	}
}

// AddUser adds a user to the mock repository (helper for tests)
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[user.ID] = user
}

// GetByID retrieves a user by ID
func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// MockPropertyRepository is a mock implementation of domain.PropertyRepository
type MockPropertyRepository struct {
	mu         sync.RWMutex
	Properties map[uuid.UUID]*domain.Property
}

// NewMockPropertyRepository creates a new MockPropertyRepository
func NewMockPropertyRepository() *MockPropertyRepository {
	return &MockPropertyRepository{
		Properties: make(map[uuid.UUID]*domain.Property),
	}
}

// AddProperty adds a property to the mock repository (helper for tests)
func (m *MockPropertyRepository) AddProperty(property *domain.Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Properties[property.ID] = property
}

// GetByID retrieves a property by ID
func (m *MockPropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if property, ok := m.Properties[id]; ok {
		return property, nil
	}
	return nil, domain.ErrPropertyNotFound
}

// AddPhoto appends a photo URL to the property
func (m *MockPropertyRepository) AddPhoto(ctx context.Context, id uuid.UUID, photoURL string) (*domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	property, ok := m.Properties[id]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	property.Photos = append(property.Photos, photoURL)
	return property, nil
}

// MockLoanRepository is a mock implementation of domain.LoanRepository
type MockLoanRepository struct {
	mu       sync.RWMutex
	Loans    map[uuid.UUID]*domain.Loan
	UpdateFn func(ctx context.Context, loan *domain.Loan) (*domain.Loan, error)
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans: make(map[uuid.UUID]*domain.Loan),
	}
}

// AddLoan adds a loan to the mock repository (helper for tests)
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loans[loan.ID] = loan
}

// Create stores a new loan
func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneLoan(loan)
	m.Loans[stored.ID] = stored
	return cloneLoan(stored), nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if loan, ok := m.Loans[id]; ok {
		return cloneLoan(loan), nil
	}
	return nil, domain.ErrLoanNotFound
}

// GetByCode retrieves a loan by its loan code
func (m *MockLoanRepository) GetByCode(ctx context.Context, code string) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loan := range m.Loans {
		if loan.LoanCode == code {
			return cloneLoan(loan), nil
		}
	}
	return nil, domain.ErrLoanNotFound
}

// List returns loans, optionally filtered by status
func (m *MockLoanRepository) List(ctx context.Context, statuses []domain.LoanStatus) ([]*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var loans []*domain.Loan
	for _, loan := range m.Loans {
		if len(statuses) > 0 && !containsStatus(statuses, loan.Status) {
			continue
		}
		loans = append(loans, cloneLoan(loan))
	}
	sort.Slice(loans, func(i, j int) bool {
		return loans[i].CreatedAt.Before(loans[j].CreatedAt)
	})
	return loans, nil
}

// Update persists loan changes
func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, loan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Loans[loan.ID]; !ok {
		return nil, domain.ErrLoanNotFound
	}
	loan.UpdatedAt = time.Now().UTC()
	m.Loans[loan.ID] = cloneLoan(loan)
	return cloneLoan(loan), nil
}

func containsStatus(statuses []domain.LoanStatus, s domain.LoanStatus) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

func cloneLoan(loan *domain.Loan) *domain.Loan {
	copied := *loan
	return &copied
}

// MockInvestmentRepository is a mock implementation of domain.InvestmentRepository
type MockInvestmentRepository struct {
	mu          sync.RWMutex
	Investments map[uuid.UUID]*domain.Investment
}

// NewMockInvestmentRepository creates a new MockInvestmentRepository
func NewMockInvestmentRepository() *MockInvestmentRepository {
	return &MockInvestmentRepository{
		Investments: make(map[uuid.UUID]*domain.Investment),
	}
}

// AddInvestment adds an investment to the mock repository (helper for tests)
func (m *MockInvestmentRepository) AddInvestment(investment *domain.Investment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Investments[investment.ID] = investment
}

// Create stores a new investment
func (m *MockInvestmentRepository) Create(ctx context.Context, investment *domain.Investment) (*domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneInvestment(investment)
	m.Investments[stored.ID] = stored
	return cloneInvestment(stored), nil
}

// GetByID retrieves an investment by ID
func (m *MockInvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if investment, ok := m.Investments[id]; ok {
		return cloneInvestment(investment), nil
	}
	return nil, domain.ErrInvestmentNotFound
}

// GetByLoanID returns all investments for a loan
func (m *MockInvestmentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Investment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var investments []*domain.Investment
	for _, investment := range m.Investments {
		if investment.LoanID == loanID {
			investments = append(investments, cloneInvestment(investment))
		}
	}
	sort.Slice(investments, func(i, j int) bool {
		return investments[i].CreatedAt.Before(investments[j].CreatedAt)
	})
	return investments, nil
}

// UpdateAmount updates the committed amount of an investment
func (m *MockInvestmentRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	investment, ok := m.Investments[id]
	if !ok {
		return nil, domain.ErrInvestmentNotFound
	}
	investment.CommittedAmount = amount
	investment.UpdatedAt = time.Now().UTC()
	return cloneInvestment(investment), nil
}

// Delete removes an investment
func (m *MockInvestmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Investments[id]; !ok {
		return domain.ErrInvestmentNotFound
	}
	delete(m.Investments, id)
	return nil
}

// CountByLoanID counts non-cancelled investments for a loan
func (m *MockInvestmentRepository) CountByLoanID(ctx context.Context, loanID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, investment := range m.Investments {
		if investment.LoanID == loanID && investment.Counts() {
			count++
		}
	}
	return count, nil
}

func cloneInvestment(investment *domain.Investment) *domain.Investment {
	copied := *investment
	return &copied
}

// MockTransactionRepository is a mock implementation of domain.TransactionRepository
type MockTransactionRepository struct {
	mu           sync.RWMutex
	Transactions map[uuid.UUID]*domain.Transaction
	order        []uuid.UUID
	CreateFn     func(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error)
}

// NewMockTransactionRepository creates a new MockTransactionRepository
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		Transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

// AddTransaction adds a transaction to the mock repository (helper for tests)
func (m *MockTransactionRepository) AddTransaction(transaction *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transactions[transaction.ID] = transaction
	m.order = append(m.order, transaction.ID)
}

// Create appends a new ledger entry
func (m *MockTransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, transaction)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneTransaction(transaction)
	m.Transactions[stored.ID] = stored
	m.order = append(m.order, stored.ID)
	return cloneTransaction(stored), nil
}

// GetByID retrieves a transaction by ID
func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if transaction, ok := m.Transactions[id]; ok {
		return cloneTransaction(transaction), nil
	}
	return nil, domain.ErrTransactionNotFound
}

// GetByLoanID returns a loan's ledger ordered by payment date, insertion order
// as the tie-break
func (m *MockTransactionRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.Transaction
	for _, id := range m.order {
		if t, ok := m.Transactions[id]; ok && t.LoanID == loanID {
			entries = append(entries, cloneTransaction(t))
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PaymentDate.Before(entries[j].PaymentDate)
	})
	return entries, nil
}

// List returns transactions matching the filter in insertion order
func (m *MockTransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.Transaction
	for _, id := range m.order {
		t, ok := m.Transactions[id]
		if !ok {
			continue
		}
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.UserID != nil && (t.UserID == nil || *t.UserID != *filter.UserID) {
			continue
		}
		entries = append(entries, cloneTransaction(t))
	}
	return entries, nil
}

// UpdateCorrection persists a corrected transaction
func (m *MockTransactionRepository) UpdateCorrection(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Transactions[transaction.ID]; !ok {
		return nil, domain.ErrTransactionNotFound
	}
	m.Transactions[transaction.ID] = cloneTransaction(transaction)
	return cloneTransaction(transaction), nil
}

// UpdateReceiptURL records the stored receipt path on a transaction
func (m *MockTransactionRepository) UpdateReceiptURL(ctx context.Context, id uuid.UUID, receiptURL string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	transaction, ok := m.Transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	transaction.ReceiptURL = &receiptURL
	return cloneTransaction(transaction), nil
}

// SumPortionsByLoan aggregates completed payment portions for a loan
func (m *MockTransactionRepository) SumPortionsByLoan(ctx context.Context, loanID uuid.UUID) (*domain.LedgerTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	totals := &domain.LedgerTotals{
		TotalInterestPaid:  decimal.Zero,
		TotalPrincipalPaid: decimal.Zero,
		TotalCommission:    decimal.Zero,
	}
	for _, t := range m.Transactions {
		if t.LoanID != loanID || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if t.Type.Payment() {
			totals.TotalInterestPaid = totals.TotalInterestPaid.Add(t.InterestPortion)
			totals.TotalPrincipalPaid = totals.TotalPrincipalPaid.Add(t.PrincipalPortion)
		}
		if t.Type == domain.TransactionTypeProyectyCommission {
			totals.TotalCommission = totals.TotalCommission.Add(t.Amount)
		}
	}
	return totals, nil
}

func cloneTransaction(transaction *domain.Transaction) *domain.Transaction {
	copied := *transaction
	return &copied
}
