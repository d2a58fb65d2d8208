package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
)

func TestPrincipalRepo_Lookup(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPrincipalRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT username, credential_hash, credential_salt, authorities FROM principals WHERE username=\$1`).
		WithArgs("usuario_desafio").
		WillReturnRows(pgxmock.NewRows([]string{"username", "credential_hash", "credential_salt", "authorities"}).
			AddRow("usuario_desafio", []byte("h"), []byte("s"), []string{"accounts:write"}))
	p, err := r.Lookup(ctx, "usuario_desafio")
	require.NoError(t, err)
	require.Equal(t, "usuario_desafio", p.Username)
	require.Equal(t, []string{"accounts:write"}, p.Authorities)

	mock.ExpectQuery(`FROM principals WHERE username=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Lookup(ctx, "ghost")
	require.ErrorIs(t, err, errs.ErrPrincipalNotFound)
}

func TestPrincipalRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPrincipalRepo(db)

	mock.ExpectExec(`INSERT INTO principals \(username, credential_hash, credential_salt, authorities\) VALUES \(\$1, \$2, \$3, \$4\) ON CONFLICT \(username\) DO UPDATE`).
		WithArgs("u", []byte("h"), []byte{}, []string{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Upsert(context.Background(), &model.Principal{Username: "u", Credential: []byte("h")}))
	require.NoError(t, mock.ExpectationsWereMet())
}
