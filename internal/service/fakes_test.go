package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
	"github.com/and161185/payables/internal/repository"
)

type fakeAccounts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.PayableAccount

	insertErr func(a *model.PayableAccount) error
	listErr   error
	saves     int

	lastFilter model.ListFilter
	lastPage   model.PageRequest
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: map[uuid.UUID]model.PayableAccount{}}
}

func (f *fakeAccounts) Insert(_ context.Context, a *model.PayableAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		if err := f.insertErr(a); err != nil {
			return err
		}
	}
	if _, ok := f.byID[a.ID]; ok {
		return errs.ErrConflict
	}
	f.byID[a.ID] = *a
	return nil
}

func (f *fakeAccounts) Save(_ context.Context, a *model.PayableAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.byID[a.ID] = *a
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.PayableAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

func (f *fakeAccounts) List(_ context.Context, flt model.ListFilter, p model.PageRequest) ([]model.PayableAccount, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter, f.lastPage = flt, p
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	all := f.sorted()
	total := int64(len(all))
	start := p.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeAccounts) ListPaidBetween(_ context.Context, from, to model.Date) ([]model.PayableAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PayableAccount
	for _, a := range f.sorted() {
		if a.PaymentDate == nil || a.PaymentDate.Before(from.Time) || a.PaymentDate.After(to.Time) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAccounts) sorted() []model.PayableAccount {
	out := make([]model.PayableAccount, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate.Time) })
	return out
}

// sliceSource replays prepared rows and then an optional terminal error.
type sliceSource struct {
	rows []SourceRow
	tail error
}

func (s *sliceSource) Next() (SourceRow, error) {
	if len(s.rows) == 0 {
		if s.tail != nil {
			return SourceRow{}, s.tail
		}
		return SourceRow{}, io.EOF
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

var errDisk = errors.New("disk on fire")
