// Package auth resolves bearer tokens into request identities.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/principal"
	"github.com/and161185/payables/internal/token"
)

// State is a step of per-request authentication.
type State int

const (
	StateStart State = iota
	StateHeaderRead
	StateTokenParsed
	StatePrincipalResolved
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateHeaderRead:
		return "HEADER_READ"
	case StateTokenParsed:
		return "TOKEN_PARSED"
	case StatePrincipalResolved:
		return "PRINCIPAL_RESOLVED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

const bearerPrefix = "Bearer "

// Tokens is the part of the token codec the gate needs.
type Tokens interface {
	Parse(tok string) (token.Claims, error)
	Validate(tok, expectedSubject string) (bool, error)
}

// RequestMeta is request information copied into the identity.
type RequestMeta struct {
	RemoteAddr string
	RequestID  string
}

// Gate attaches an identity to requests that carry a usable bearer token.
// It never rejects a request; route policy decides what needs an identity.
type Gate struct {
	tokens Tokens
	lookup principal.Lookup
	log    *zap.Logger
}

// NewGate constructs a Gate.
func NewGate(tokens Tokens, lookup principal.Lookup, log *zap.Logger) *Gate {
	return &Gate{tokens: tokens, lookup: lookup, log: log}
}

// Middleware runs Resolve for every request and always calls next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromCtx(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		meta := RequestMeta{RemoteAddr: r.RemoteAddr, RequestID: r.Header.Get("X-Request-ID")}
		if id, state := g.Resolve(r.Context(), r.Header.Get("Authorization"), meta); state == StateAuthenticated {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Resolve walks the authentication states for one request and returns the
// terminal state. The identity is non-nil only for StateAuthenticated.
func (g *Gate) Resolve(ctx context.Context, header string, meta RequestMeta) (*Identity, State) {
	if id, ok := IdentityFromCtx(ctx); ok {
		return id, StateAuthenticated
	}
	if header == "" {
		return nil, StateUnauthenticated
	}

	// HEADER_READ
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" {
		return nil, g.reject(StateHeaderRead, meta, "empty bearer token")
	}
	claims, err := g.tokens.Parse(raw)
	if err != nil {
		return nil, g.rejectToken(meta, err)
	}

	// TOKEN_PARSED
	p, err := g.lookup.Lookup(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, errs.ErrPrincipalNotFound) {
			return nil, g.reject(StateTokenParsed, meta, "unknown principal", zap.String("subject", claims.Subject))
		}
		g.log.Error("principal lookup failed",
			zap.String("subject", claims.Subject),
			zap.String("request_id", meta.RequestID),
			zap.Error(err))
		return nil, StateUnauthenticated
	}

	// PRINCIPAL_RESOLVED
	ok, err := g.tokens.Validate(raw, p.Username)
	if err != nil {
		return nil, g.rejectToken(meta, err)
	}
	if !ok {
		return nil, g.reject(StatePrincipalResolved, meta, "token subject does not match principal",
			zap.String("subject", claims.Subject))
	}

	return &Identity{
		Principal:   p.Username,
		Authorities: p.Authorities,
		RemoteAddr:  meta.RemoteAddr,
		RequestID:   meta.RequestID,
		TokenID:     claims.ID,
	}, StateAuthenticated
}

func (g *Gate) rejectToken(meta RequestMeta, err error) State {
	f := token.FailureOf(err)
	fields := []zap.Field{
		zap.String("failure", f.String()),
		zap.String("remote", meta.RemoteAddr),
		zap.String("request_id", meta.RequestID),
		zap.Error(err),
	}
	if f == token.FailureExpired {
		g.log.Info("bearer token expired", fields...)
	} else {
		g.log.Warn("bearer token rejected", fields...)
	}
	return StateUnauthenticated
}

func (g *Gate) reject(at State, meta RequestMeta, msg string, fields ...zap.Field) State {
	fields = append(fields,
		zap.Stringer("state", at),
		zap.String("remote", meta.RemoteAddr),
		zap.String("request_id", meta.RequestID))
	g.log.Info(msg, fields...)
	return StateUnauthenticated
}
