package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/and161185/payables/internal/crypto"
	"github.com/and161185/payables/internal/model"
)

// Credential policy names accepted in configuration.
const (
	PolicyNone   = "none"
	PolicyPlain  = "plain"
	PolicyArgon2 = "argon2"
)

// CredentialPolicy decides whether a presented password matches a principal.
type CredentialPolicy interface {
	Verify(p *model.Principal, password string) bool
}

// NewCredentialPolicy builds the named policy.
func NewCredentialPolicy(name string) (CredentialPolicy, error) {
	switch name {
	case "", PolicyNone:
		return AcceptAny{}, nil
	case PolicyPlain:
		return Plain{}, nil
	case PolicyArgon2:
		return Argon2{Params: crypto.DefaultParams}, nil
	default:
		return nil, fmt.Errorf("unknown credential policy %q", name)
	}
}

// AcceptAny skips the password check entirely. Only the username must resolve.
type AcceptAny struct{}

func (AcceptAny) Verify(*model.Principal, string) bool { return true }

// Plain compares the stored credential byte for byte.
type Plain struct{}

func (Plain) Verify(p *model.Principal, password string) bool {
	if len(p.Credential) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(p.Credential, []byte(password)) == 1
}

// Argon2 treats the stored credential as an argon2id hash salted with p.Salt.
type Argon2 struct{ Params crypto.Params }

func (a Argon2) Verify(p *model.Principal, password string) bool {
	return a.Params.Verify([]byte(password), p.Salt, p.Credential)
}
