package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
)

// Canonical import field names.
const (
	FieldDueDate     = "due_date"
	FieldPaymentDate = "payment_date"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldStatus      = "status"
)

// RequiredFields must be present and non-empty in every imported row.
var RequiredFields = []string{FieldDueDate, FieldAmount, FieldDescription, FieldStatus}

// SourceRow is one row read from an import source. Err is set when the row
// itself could not be decoded; the source can still continue after it.
type SourceRow struct {
	Line   int
	Fields map[string]string
	Err    error
}

// RowSource yields rows until io.EOF. Any other error aborts the import.
type RowSource interface {
	Next() (SourceRow, error)
}

// Import persists each parsable row as a new account. Bad rows are skipped
// and logged; only source I/O failures and cancellation stop the loop.
func (s *AccountServiceImpl) Import(ctx context.Context, src RowSource) (model.ImportResult, error) {
	res := model.ImportResult{Skipped: []model.SkippedRow{}}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read import source: %w", err)
		}

		perr := row.Err
		if perr == nil {
			perr = s.importRow(ctx, row.Fields)
		}
		if perr != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.log.Warn("import row skipped", zap.Int("line", row.Line), zap.Error(perr))
			res.Skipped = append(res.Skipped, model.SkippedRow{Line: row.Line, Reason: perr.Error()})
			continue
		}
		res.Imported++
	}
	s.log.Info("import finished", zap.Int("imported", res.Imported), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (s *AccountServiceImpl) importRow(ctx context.Context, fields map[string]string) error {
	a, err := ParseRow(fields)
	if err != nil {
		return err
	}
	if a.ID, err = uuid.NewV4(); err != nil {
		return err
	}
	return s.repo.Insert(ctx, &a)
}

// ParseRow turns canonical fields into an account. Dates are YYYY-MM-DD and
// the amount is a plain decimal.
func ParseRow(fields map[string]string) (model.PayableAccount, error) {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }
	for _, k := range RequiredFields {
		if get(k) == "" {
			return model.PayableAccount{}, fmt.Errorf("%w: missing %s", errs.ErrValidation, k)
		}
	}

	due, err := model.ParseDate(get(FieldDueDate))
	if err != nil {
		return model.PayableAccount{}, fmt.Errorf("%w: %s: %v", errs.ErrValidation, FieldDueDate, err)
	}
	amount, err := decimal.NewFromString(get(FieldAmount))
	if err != nil {
		return model.PayableAccount{}, fmt.Errorf("%w: %s: %v", errs.ErrValidation, FieldAmount, err)
	}
	a := model.PayableAccount{
		DueDate:     due,
		Amount:      amount,
		Description: get(FieldDescription),
		Status:      get(FieldStatus),
	}
	if v := get(FieldPaymentDate); v != "" {
		paid, err := model.ParseDate(v)
		if err != nil {
			return model.PayableAccount{}, fmt.Errorf("%w: %s: %v", errs.ErrValidation, FieldPaymentDate, err)
		}
		a.PaymentDate = &paid
	}
	return a, nil
}
