// Package importer turns uploaded files into rows for the account import.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/service"
)

// headerAliases maps legacy column names onto the canonical ones.
var headerAliases = map[string]string{
	"data_vencimento": service.FieldDueDate,
	"data_pagamento":  service.FieldPaymentDate,
	"valor":           service.FieldAmount,
	"descricao":       service.FieldDescription,
	"situacao":        service.FieldStatus,
}

// CSVSource reads a header row followed by data rows.
type CSVSource struct {
	r       *csv.Reader
	columns []string // canonical name per column index, "" when unknown
}

var _ service.RowSource = (*CSVSource)(nil)

// NewCSVSource reads the header of r. It fails when the header is missing or
// lacks a required column.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file, header row required", errs.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", errs.ErrValidation, err)
	}

	src := &CSVSource{r: cr, columns: make([]string, len(header))}
	seen := map[string]bool{}
	for i, h := range header {
		name := NormalizeHeader(h)
		src.columns[i] = name
		seen[name] = true
	}
	var missing []string
	for _, f := range service.RequiredFields {
		if !seen[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: header lacks %s", errs.ErrValidation, strings.Join(missing, ", "))
	}
	return src, nil
}

// NormalizeHeader maps a header cell to its canonical field name.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	name := strcase.ToSnake(h)
	if alias, ok := headerAliases[name]; ok {
		return alias
	}
	return name
}

// Next implements service.RowSource. Syntax errors are reported on the row,
// I/O errors are returned.
func (s *CSVSource) Next() (service.SourceRow, error) {
	rec, err := s.r.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return service.SourceRow{Line: pe.StartLine, Err: pe}, nil
		}
		return service.SourceRow{}, err
	}
	line, _ := s.r.FieldPos(0)

	fields := make(map[string]string, len(s.columns))
	for i, v := range rec {
		if i >= len(s.columns) || s.columns[i] == "" {
			continue
		}
		fields[s.columns[i]] = v
	}
	return service.SourceRow{Line: line, Fields: fields}, nil
}
