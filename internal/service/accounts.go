package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
	"github.com/and161185/payables/internal/repository"
)

// Page size bounds applied by List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// AccountService defines operations over payable accounts.
type AccountService interface {
	// Create assigns a fresh id and stores the account.
	Create(ctx context.Context, a model.PayableAccount) (model.PayableAccount, error)
	// Update stores a under id whether or not id existed before.
	Update(ctx context.Context, id uuid.UUID, a model.PayableAccount) (model.PayableAccount, error)
	// SetStatus changes the status label. An unknown id is silently ignored.
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	// Get loads one account.
	Get(ctx context.Context, id uuid.UUID) (model.PayableAccount, error)
	// List returns one page of accounts matching f.
	List(ctx context.Context, f model.ListFilter, p model.PageRequest) (model.Page, error)
	// SumPaidBetween adds up amounts paid within [from, to].
	SumPaidBetween(ctx context.Context, from, to model.Date) (decimal.Decimal, error)
	// Import stores every usable row of src and reports the rest.
	Import(ctx context.Context, src RowSource) (model.ImportResult, error)
}

type AccountServiceImpl struct {
	repo repository.AccountRepository
	log  *zap.Logger
}

// NewAccountService constructs AccountService.
func NewAccountService(repo repository.AccountRepository, log *zap.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{repo: repo, log: log}
}

// Create validates a and inserts it under a new id.
func (s *AccountServiceImpl) Create(ctx context.Context, a model.PayableAccount) (model.PayableAccount, error) {
	if err := validateAccount(a); err != nil {
		return model.PayableAccount{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.PayableAccount{}, err
	}
	a.ID = id
	if err := s.repo.Insert(ctx, &a); err != nil {
		return model.PayableAccount{}, err
	}
	return a, nil
}

// Update overwrites the account stored under id.
func (s *AccountServiceImpl) Update(ctx context.Context, id uuid.UUID, a model.PayableAccount) (model.PayableAccount, error) {
	if id == uuid.Nil {
		return model.PayableAccount{}, fmt.Errorf("%w: empty id", errs.ErrValidation)
	}
	if err := validateAccount(a); err != nil {
		return model.PayableAccount{}, err
	}
	a.ID = id
	if err := s.repo.Save(ctx, &a); err != nil {
		return model.PayableAccount{}, err
	}
	return a, nil
}

// SetStatus loads the account, replaces its status and stores it back.
func (s *AccountServiceImpl) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		s.log.Debug("status change for unknown account ignored", zap.Stringer("id", id))
		return nil
	}
	if err != nil {
		return err
	}
	a.Status = status
	return s.repo.Save(ctx, a)
}

func (s *AccountServiceImpl) Get(ctx context.Context, id uuid.UUID) (model.PayableAccount, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.PayableAccount{}, err
	}
	return *a, nil
}

// List clamps the page request and queries the repository.
func (s *AccountServiceImpl) List(ctx context.Context, f model.ListFilter, p model.PageRequest) (model.Page, error) {
	if p.Page < 0 {
		return model.Page{}, fmt.Errorf("%w: negative page", errs.ErrValidation)
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Page > math.MaxInt/p.Size {
		return model.Page{}, fmt.Errorf("%w: page %d out of range", errs.ErrValidation, p.Page)
	}
	if p.Sort == "" {
		p.Sort = model.SortDueDate
	}
	if f.DueFrom != nil && f.DueTo != nil && f.DueFrom.After(f.DueTo.Time) {
		return model.NewPage(nil, p, 0), nil
	}
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return model.Page{}, err
	}
	return model.NewPage(items, p, total), nil
}

// SumPaidBetween is zero when nothing matches, including when from is after to.
func (s *AccountServiceImpl) SumPaidBetween(ctx context.Context, from, to model.Date) (decimal.Decimal, error) {
	if from.After(to.Time) {
		return decimal.Zero, nil
	}
	items, err := s.repo.ListPaidBetween(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range items {
		sum = sum.Add(a.Amount)
	}
	return sum, nil
}

func validateAccount(a model.PayableAccount) error {
	var missing []string
	if a.DueDate.IsZero() {
		missing = append(missing, "dueDate")
	}
	if strings.TrimSpace(a.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(a.Status) == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errs.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
