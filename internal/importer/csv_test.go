package importer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/service"
)

func drain(t *testing.T, src *CSVSource) []service.SourceRow {
	t.Helper()
	var rows []service.SourceRow
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestCSVSource_CanonicalHeaders(t *testing.T) {
	in := "dueDate,Payment Date,amount,description,status\n" +
		"2024-09-20,,150.75,energia,Pendente\n" +
		"2024-09-21,2024-09-22,80,\"agua, esgoto\",Pago\n"
	src, err := NewCSVSource(strings.NewReader(in))
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 2)
	require.Equal(t, 2, rows[0].Line)
	require.Equal(t, "2024-09-20", rows[0].Fields[service.FieldDueDate])
	require.Equal(t, "", rows[0].Fields[service.FieldPaymentDate])
	require.Equal(t, "agua, esgoto", rows[1].Fields[service.FieldDescription])
	require.Equal(t, "2024-09-22", rows[1].Fields[service.FieldPaymentDate])
}

func TestCSVSource_LegacyHeaders(t *testing.T) {
	in := "\ufeffdata_vencimento,data_pagamento,valor,descricao,situacao\n" +
		"2024-09-20,,10.00,luz,Pendente\n"
	src, err := NewCSVSource(strings.NewReader(in))
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 1)
	require.Equal(t, "10.00", rows[0].Fields[service.FieldAmount])
	require.Equal(t, "luz", rows[0].Fields[service.FieldDescription])
}

func TestCSVSource_ShortAndBrokenRows(t *testing.T) {
	in := "due_date,payment_date,amount,description,status,notes\n" +
		"2024-09-20,,10\n" +
		"2024-09-20,,1\"0,x,y\n" +
		"2024-09-21,,11,ok,Pago,ignored\n"
	src, err := NewCSVSource(strings.NewReader(in))
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 3)
	require.NoError(t, rows[0].Err)
	require.Empty(t, rows[0].Fields[service.FieldStatus])
	require.Error(t, rows[1].Err)
	require.Equal(t, 3, rows[1].Line)
	require.Equal(t, 4, rows[2].Line)
	require.Equal(t, "Pago", rows[2].Fields[service.FieldStatus])
}

func TestNewCSVSource_HeaderErrors(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader(""))
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = NewCSVSource(strings.NewReader("due_date,amount\n2024-01-01,1\n"))
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Contains(t, err.Error(), "description")
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"dueDate":         service.FieldDueDate,
		"Due Date":        service.FieldDueDate,
		"  PAYMENT_DATE ": service.FieldPaymentDate,
		"valor":           service.FieldAmount,
		"Situacao":        service.FieldStatus,
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeHeader(in), in)
	}
}
