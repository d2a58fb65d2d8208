package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
)

// AccountRepo implements AccountRepository on SQLite.
type AccountRepo struct{ db *sql.DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

var accountColumns = []string{"id", "due_date", "payment_date", "amount", "description", "status"}

// Amounts are stored as text, so numeric ordering needs a cast.
var sortColumns = map[model.SortField]string{
	model.SortDueDate:     "due_date",
	model.SortPaymentDate: "payment_date",
	model.SortAmount:      "CAST(amount AS REAL)",
	model.SortDescription: "description",
	model.SortStatus:      "status",
}

func (r *AccountRepo) Insert(ctx context.Context, a *model.PayableAccount) error {
	const q = `
INSERT INTO payable_accounts (id, due_date, payment_date, amount, description, status)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, accountArgs(a)...)
	if isConstraintViolation(err) {
		return fmt.Errorf("account %s: %w", a.ID, errs.ErrConflict)
	}
	return err
}

func (r *AccountRepo) Save(ctx context.Context, a *model.PayableAccount) error {
	const q = `
INSERT INTO payable_accounts (id, due_date, payment_date, amount, description, status)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    due_date = excluded.due_date,
    payment_date = excluded.payment_date,
    amount = excluded.amount,
    description = excluded.description,
    status = excluded.status`
	_, err := r.db.ExecContext(ctx, q, accountArgs(a)...)
	return err
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.PayableAccount, error) {
	const q = `
SELECT id, due_date, payment_date, amount, description, status
FROM payable_accounts WHERE id = ?`
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepo) List(ctx context.Context, f model.ListFilter, p model.PageRequest) ([]model.PayableAccount, int64, error) {
	countSQL, countArgs, err := applyFilter(sqlb.Select("COUNT(*)").From("payable_accounts"), f).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	col, ok := sortColumns[p.Sort]
	if !ok {
		col = sortColumns[model.SortDueDate]
	}
	dir := " ASC"
	if p.Desc {
		dir = " DESC"
	}
	q, args, err := applyFilter(sqlb.Select(accountColumns...).From("payable_accounts"), f).
		OrderBy(col+dir, "id ASC").
		Limit(uint64(p.Size)).
		Offset(uint64(p.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *AccountRepo) ListPaidBetween(ctx context.Context, from, to model.Date) ([]model.PayableAccount, error) {
	const q = `
SELECT id, due_date, payment_date, amount, description, status
FROM payable_accounts
WHERE payment_date IS NOT NULL AND payment_date >= ? AND payment_date <= ?
ORDER BY payment_date, id`
	return r.query(ctx, q, from.String(), to.String())
}

func (r *AccountRepo) query(ctx context.Context, q string, args ...any) ([]model.PayableAccount, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
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
		b = b.Where(sq.GtOrEq{"due_date": f.DueFrom.String()})
	}
	if f.DueTo != nil {
		b = b.Where(sq.LtOrEq{"due_date": f.DueTo.String()})
	}
	if f.DescriptionContains != "" {
		b = b.Where(`description LIKE ? ESCAPE '\'`, "%"+escapeLike(f.DescriptionContains)+"%")
	}
	return b
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func accountArgs(a *model.PayableAccount) []any {
	var paid any
	if a.PaymentDate != nil {
		paid = a.PaymentDate.String()
	}
	return []any{a.ID.String(), a.DueDate.String(), paid, a.Amount.String(), a.Description, a.Status}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*model.PayableAccount, error) {
	var (
		a            model.PayableAccount
		id, due, amt string
		paid         sql.NullString
	)
	if err := row.Scan(&id, &due, &paid, &amt, &a.Description, &a.Status); err != nil {
		return nil, err
	}
	var err error
	if a.ID, err = uuid.FromString(id); err != nil {
		return nil, fmt.Errorf("account id %q: %w", id, err)
	}
	if a.DueDate, err = model.ParseDate(due); err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	if paid.Valid {
		d, err := model.ParseDate(paid.String)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", id, err)
		}
		a.PaymentDate = &d
	}
	if a.Amount, err = decimal.NewFromString(amt); err != nil {
		return nil, fmt.Errorf("account %s amount %q: %w", id, amt, err)
	}
	return &a, nil
}
