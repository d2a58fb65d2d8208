// Package service contains application services for authentication and payable accounts.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/payables/internal/auth"
	pkgcrypto "github.com/and161185/payables/internal/crypto"
	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
	"github.com/and161185/payables/internal/principal"
	"github.com/and161185/payables/internal/repository"
)

// TokenIssuer signs access tokens for a subject.
type TokenIssuer interface {
	Issue(subject string, custom map[string]any) (model.Token, error)
}

// AuthService exchanges credentials for access tokens.
type AuthService interface {
	// Login verifies the credentials and returns a signed token. Every failure
	// is reported as errs.ErrAuthenticationFailed.
	Login(ctx context.Context, username, password string) (model.Token, error)
}

type AuthServiceImpl struct {
	lookup principal.Lookup
	policy auth.CredentialPolicy
	tokens TokenIssuer
	log    *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(lookup principal.Lookup, policy auth.CredentialPolicy, tokens TokenIssuer, log *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{lookup: lookup, policy: policy, tokens: tokens, log: log}
}

// Login resolves the principal, checks the password with the configured
// policy and issues a token for the principal's username.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (model.Token, error) {
	p, err := s.lookup.Lookup(ctx, username)
	if err != nil {
		s.log.Info("login rejected", zap.String("username", username), zap.Error(err))
		return model.Token{}, errs.ErrAuthenticationFailed
	}
	if !s.policy.Verify(p, password) {
		s.log.Info("login rejected", zap.String("username", username), zap.String("reason", "bad credentials"))
		return model.Token{}, errs.ErrAuthenticationFailed
	}

	tok, err := s.tokens.Issue(p.Username, nil)
	if err != nil {
		s.log.Error("issue token", zap.String("username", p.Username), zap.Error(err))
		return model.Token{}, errs.ErrAuthenticationFailed
	}
	return tok, nil
}

// ProvisionPrincipal creates or replaces a principal in a persistent store,
// encoding the password the way policyName expects to verify it.
func ProvisionPrincipal(ctx context.Context, store repository.PrincipalRepository, policyName, username, password string, authorities []string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	p := &model.Principal{Username: username, Authorities: authorities}
	switch policyName {
	case auth.PolicyArgon2:
		hash, salt, err := pkgcrypto.DefaultParams.NewCredential([]byte(password))
		if err != nil {
			return err
		}
		p.Credential, p.Salt = hash, salt
	default:
		p.Credential = []byte(password)
	}
	return store.Upsert(ctx, p)
}
