// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/payables/internal/model"
)

// AccountRepository stores payable accounts. Every call touches at most one row
// for writes; there is no cross-call transaction.
type AccountRepository interface {
	// Insert adds a new account, failing with errs.ErrConflict if the id exists.
	Insert(ctx context.Context, a *model.PayableAccount) error
	// Save inserts or replaces the account with a.ID.
	Save(ctx context.Context, a *model.PayableAccount) error
	// GetByID loads one account or returns errs.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*model.PayableAccount, error)
	// List returns one page of accounts matching f and the total match count.
	List(ctx context.Context, f model.ListFilter, p model.PageRequest) ([]model.PayableAccount, int64, error)
	// ListPaidBetween returns accounts whose payment date lies in [from, to].
	ListPaidBetween(ctx context.Context, from, to model.Date) ([]model.PayableAccount, error)
}

// PrincipalRepository is a persistent identity store.
type PrincipalRepository interface {
	// Lookup returns errs.ErrPrincipalNotFound for unknown usernames.
	Lookup(ctx context.Context, username string) (*model.Principal, error)
	// Upsert creates or replaces a principal.
	Upsert(ctx context.Context, p *model.Principal) error
}
