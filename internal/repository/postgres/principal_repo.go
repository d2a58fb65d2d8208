package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
)

// PrincipalRepo implements PrincipalRepository using PostgreSQL.
type PrincipalRepo struct{ db *DB }

// NewPrincipalRepo constructs a principal repository.
func NewPrincipalRepo(db *DB) *PrincipalRepo { return &PrincipalRepo{db: db} }

// Lookup selects a principal by username.
func (r *PrincipalRepo) Lookup(ctx context.Context, username string) (*model.Principal, error) {
	const q = `
SELECT username, credential_hash, credential_salt, authorities
FROM principals WHERE username=$1`
	var p model.Principal
	err := r.db.Pool.QueryRow(ctx, q, username).Scan(&p.Username, &p.Credential, &p.Salt, &p.Authorities)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Authorities == nil {
		p.Authorities = []string{}
	}
	return &p, nil
}

// Upsert creates or replaces a principal row.
func (r *PrincipalRepo) Upsert(ctx context.Context, p *model.Principal) error {
	const q = `
INSERT INTO principals (username, credential_hash, credential_salt, authorities)
VALUES ($1, $2, $3, $4)
ON CONFLICT (username) DO UPDATE SET
    credential_hash = EXCLUDED.credential_hash,
    credential_salt = EXCLUDED.credential_salt,
    authorities = EXCLUDED.authorities`
	salt := p.Salt
	if salt == nil {
		salt = []byte{}
	}
	auths := p.Authorities
	if auths == nil {
		auths = []string{}
	}
	_, err := r.db.Pool.Exec(ctx, q, p.Username, p.Credential, salt, auths)
	return err
}
