package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// amount is read back as text so NUMERIC never passes through float64.
var accountColumns = []string{"id", "due_date", "payment_date", "amount::text", "description", "status"}

var sortColumns = map[model.SortField]string{
	model.SortDueDate:     "due_date",
	model.SortPaymentDate: "payment_date",
	model.SortAmount:      "amount",
	model.SortDescription: "description",
	model.SortStatus:      "status",
}

// Insert adds a new row.
func (r *AccountRepo) Insert(ctx context.Context, a *model.PayableAccount) error {
	const q = `
INSERT INTO payable_accounts (id, due_date, payment_date, amount, description, status)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, accountArgs(a)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("account %s: %w", a.ID, errs.ErrConflict)
	}
	return err
}

// Save upserts by id.
func (r *AccountRepo) Save(ctx context.Context, a *model.PayableAccount) error {
	const q = `
INSERT INTO payable_accounts (id, due_date, payment_date, amount, description, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    due_date = EXCLUDED.due_date,
    payment_date = EXCLUDED.payment_date,
    amount = EXCLUDED.amount,
    description = EXCLUDED.description,
    status = EXCLUDED.status`
	_, err := r.db.Pool.Exec(ctx, q, accountArgs(a)...)
	return err
}

// GetByID selects one account.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.PayableAccount, error) {
	const q = `
SELECT id, due_date, payment_date, amount::text, description, status
FROM payable_accounts WHERE id=$1`
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns a filtered, ordered page and the total number of matches.
func (r *AccountRepo) List(ctx context.Context, f model.ListFilter, p model.PageRequest) ([]model.PayableAccount, int64, error) {
	countSQL, countArgs, err := applyFilter(psql.Select("COUNT(*)").From("payable_accounts"), f).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.Pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	dir := " ASC"
	if p.Desc {
		dir = " DESC"
	}
	col, ok := sortColumns[p.Sort]
	if !ok {
		col = sortColumns[model.SortDueDate]
	}
	b := applyFilter(psql.Select(accountColumns...).From("payable_accounts"), f).
		OrderBy(col+dir, "id ASC").
		Limit(uint64(p.Size)).
		Offset(uint64(p.Offset()))
	q, args, err := b.ToSql()
	if err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListPaidBetween returns accounts paid within [from, to].
func (r *AccountRepo) ListPaidBetween(ctx context.Context, from, to model.Date) ([]model.PayableAccount, error) {
	const q = `
SELECT id, due_date, payment_date, amount::text, description, status
FROM payable_accounts
WHERE payment_date IS NOT NULL AND payment_date >= $1 AND payment_date <= $2
ORDER BY payment_date, id`
	return r.query(ctx, q, from.Time, to.Time)
}

func (r *AccountRepo) query(ctx context.Context, q string, args ...any) ([]model.PayableAccount, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PayableAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func applyFilter(b sq.SelectBuilder, f model.ListFilter) sq.SelectBuilder {
	if f.DueFrom != nil {
		b = b.Where(sq.GtOrEq{"due_date": f.DueFrom.Time})
	}
	if f.DueTo != nil {
		b = b.Where(sq.LtOrEq{"due_date": f.DueTo.Time})
	}
	if f.DescriptionContains != "" {
		b = b.Where(`description LIKE ? ESCAPE '\'`, "%"+EscapeLike(f.DescriptionContains)+"%")
	}
	return b
}

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func accountArgs(a *model.PayableAccount) []any {
	var paid *time.Time
	if a.PaymentDate != nil {
		t := a.PaymentDate.Time
		paid = &t
	}
	return []any{a.ID, a.DueDate.Time, paid, a.Amount.String(), a.Description, a.Status}
}

func scanAccount(row pgx.Row) (*model.PayableAccount, error) {
	var (
		a      model.PayableAccount
		due    time.Time
		paid   *time.Time
		amount string
	)
	if err := row.Scan(&a.ID, &due, &paid, &amount, &a.Description, &a.Status); err != nil {
		return nil, err
	}
	a.DueDate = model.DateOf(due)
	if paid != nil {
		d := model.DateOf(*paid)
		a.PaymentDate = &d
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("account %s amount %q: %w", a.ID, amount, err)
	}
	a.Amount = dec
	return &a, nil
}
