// Package principal resolves usernames to authenticatable principals.
package principal

import (
	"context"

	"github.com/and161185/payables/internal/model"
)

// Lookup resolves a username. Implementations return errs.ErrPrincipalNotFound
// for unknown names and a freshly built value on every call.
type Lookup interface {
	Lookup(ctx context.Context, username string) (*model.Principal, error)
}

// Fixed demo account served by Static.
const (
	DemoUsername = "usuario_desafio"
	DemoPassword = "senha_desafio"
)

// Static always answers with the same account, whatever username is asked for.
type Static struct {
	Username    string
	Password    string
	Authorities []string
}

// NewStatic returns the demo account store.
func NewStatic() *Static {
	return &Static{Username: DemoUsername, Password: DemoPassword}
}

// Lookup implements Lookup.
func (s *Static) Lookup(ctx context.Context, _ string) (*model.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &model.Principal{
		Username:    s.Username,
		Credential:  []byte(s.Password),
		Authorities: append([]string{}, s.Authorities...),
	}, nil
}
