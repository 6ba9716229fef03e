package accounts

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/model"
)

// Repository persists the chart. The SQLite store implements it.
type Repository interface {
	InsertAccount(ctx context.Context, a model.Account) (model.Account, error)
	UpdateAccount(ctx context.Context, number string, a model.Account) (model.Account, error)
	DeleteAccount(ctx context.Context, number string) error
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// Registration is the inbound record for creating or editing an account.
// A blank NormalBalance defaults from Type.
type Registration struct {
	Number        string
	Name          string
	Type          model.AccountType
	NormalBalance model.NormalBalance
	Description   string
	Active        bool
}

// Service is the chart of accounts: an in-memory index over the repository,
// ordered by account number. Mutations hold the write lock across the
// duplicate check and the insert.
type Service struct {
	repo Repository
	log  *zap.Logger

	mu       sync.RWMutex
	accounts []model.Account
	byNumber map[string]model.Account
}

// NewService loads the chart from repo.
func NewService(ctx context.Context, repo Repository, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{repo: repo, log: log}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the chart from the repository.
func (s *Service) Reload(ctx context.Context) error {
	accts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("loading chart of accounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index(accts)
	return nil
}

// index must be called with mu held.
func (s *Service) index(accts []model.Account) {
	slices.SortFunc(accts, func(a, b model.Account) int { return strings.Compare(a.Number, b.Number) })
	s.accounts = accts
	s.byNumber = make(map[string]model.Account, len(accts))
	for _, a := range accts {
		s.byNumber[a.Number] = a
	}
}

// put must be called with mu held.
func (s *Service) put(oldNumber string, a model.Account) {
	accts := slices.DeleteFunc(slices.Clone(s.accounts), func(x model.Account) bool {
		return x.Number == oldNumber || x.Number == a.Number
	})
	s.index(append(accts, a))
}

// All returns every account ordered by number.
func (s *Service) All() []model.Account {
	return s.List(false)
}

// List returns the chart ordered by number, optionally active accounts only.
func (s *Service) List(activeOnly bool) []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if activeOnly && !a.Active {
			continue
		}
		result = append(result, a)
	}
	return result
}

// Lookup resolves an account number. A miss re-reads the chart once, so
// accounts added through another handle on the same ledger file (the CLI
// while serve is running) resolve without a restart.
func (s *Service) Lookup(number string) (model.Account, error) {
	if a, ok := s.Get(number); ok {
		return a, nil
	}
	if err := s.Reload(context.Background()); err != nil {
		s.log.Warn("chart reload failed", zap.String("number", number), zap.Error(err))
	} else if a, ok := s.Get(number); ok {
		return a, nil
	}
	return model.Account{}, &model.UnknownAccountError{Number: number}
}

// Get returns an account by number.
func (s *Service) Get(number string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byNumber[number]
	return a, ok
}

// Exists reports whether an account number exists.
func (s *Service) Exists(number string) bool {
	_, ok := s.Get(number)
	return ok
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Account
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Search matches term case-insensitively against number, name and type.
// An empty term returns the whole chart.
func (s *Service) Search(term string) []model.Account {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.All()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Account
	for _, a := range s.accounts {
		if strings.Contains(strings.ToLower(a.Number), term) ||
			strings.Contains(strings.ToLower(a.Name), term) ||
			strings.Contains(string(a.Type), term) {
			result = append(result, a)
		}
	}
	return result
}

// Register adds an account to the chart.
func (s *Service) Register(ctx context.Context, reg Registration) (model.Account, error) {
	acct, err := reg.account()
	if err != nil {
		return model.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNumber[acct.Number]; ok {
		return model.Account{}, fmt.Errorf("account %s: %w", acct.Number, model.ErrDuplicateAccountNumber)
	}
	acct, err = s.repo.InsertAccount(ctx, acct)
	if err != nil {
		return model.Account{}, err
	}
	s.put(acct.Number, acct)

	s.log.Info("account registered",
		zap.String("number", acct.Number),
		zap.String("name", acct.Name),
		zap.String("type", string(acct.Type)))
	return acct, nil
}

// Update replaces the metadata of the account numbered number. The number
// itself may change only while no journal line references the account.
func (s *Service) Update(ctx context.Context, number string, reg Registration) (model.Account, error) {
	acct, err := reg.account()
	if err != nil {
		return model.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNumber[number]; !ok {
		return model.Account{}, &model.UnknownAccountError{Number: number}
	}
	if acct.Number != number {
		if _, taken := s.byNumber[acct.Number]; taken {
			return model.Account{}, fmt.Errorf("account %s: %w", acct.Number, model.ErrDuplicateAccountNumber)
		}
	}

	acct, err = s.repo.UpdateAccount(ctx, number, acct)
	if err != nil {
		return model.Account{}, err
	}
	s.put(number, acct)

	s.log.Info("account updated", zap.String("number", number), zap.String("new_number", acct.Number))
	return acct, nil
}

// SetActive flips the soft-delete flag.
func (s *Service) SetActive(ctx context.Context, number string, active bool) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byNumber[number]
	if !ok {
		return model.Account{}, &model.UnknownAccountError{Number: number}
	}
	acct.Active = active
	acct, err := s.repo.UpdateAccount(ctx, number, acct)
	if err != nil {
		return model.Account{}, err
	}
	s.put(number, acct)

	s.log.Info("account active flag changed", zap.String("number", number), zap.Bool("active", active))
	return acct, nil
}

// Remove hard-deletes an account. Accounts referenced by journal lines are
// refused with model.ErrAccountReferenced; deactivate them instead.
func (s *Service) Remove(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNumber[number]; !ok {
		return &model.UnknownAccountError{Number: number}
	}
	if err := s.repo.DeleteAccount(ctx, number); err != nil {
		return err
	}
	s.index(slices.DeleteFunc(slices.Clone(s.accounts), func(a model.Account) bool { return a.Number == number }))

	s.log.Info("account removed", zap.String("number", number))
	return nil
}

// Seed registers every account in chart whose number is not already taken
// and returns how many were added.
func (s *Service) Seed(ctx context.Context, chart []model.Account) (int, error) {
	added := 0
	for _, a := range chart {
		if s.Exists(a.Number) {
			continue
		}
		_, err := s.Register(ctx, Registration{
			Number:        a.Number,
			Name:          a.Name,
			Type:          a.Type,
			NormalBalance: a.NormalBalance,
			Description:   a.Description,
			Active:        a.Active,
		})
		if err != nil {
			return added, fmt.Errorf("seeding account %s: %w", a.Number, err)
		}
		added++
	}
	return added, nil
}

func (r Registration) account() (model.Account, error) {
	a := model.Account{
		Number:        strings.TrimSpace(r.Number),
		Name:          strings.TrimSpace(r.Name),
		Description:   strings.TrimSpace(r.Description),
		Active:        r.Active,
		NormalBalance: r.NormalBalance,
	}
	if a.Number == "" {
		return model.Account{}, fmt.Errorf("account number is required: %w", model.ErrInvalidAccount)
	}
	if a.Name == "" {
		return model.Account{}, fmt.Errorf("account %s: name is required: %w", a.Number, model.ErrInvalidAccount)
	}

	typ, err := model.ParseAccountType(string(r.Type))
	if err != nil {
		return model.Account{}, fmt.Errorf("account %s: %v: %w", a.Number, err, model.ErrInvalidAccount)
	}
	a.Type = typ

	if a.NormalBalance == "" {
		a.NormalBalance = model.DefaultNormalBalance(typ)
	} else {
		nb, err := model.ParseNormalBalance(string(a.NormalBalance))
		if err != nil {
			return model.Account{}, fmt.Errorf("account %s: %v: %w", a.Number, err, model.ErrInvalidAccount)
		}
		a.NormalBalance = nb
	}
	return a, nil
}
