// Package token issues and verifies the HS256 bearer tokens handed out by /authenticate.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 10 * time.Hour

var registered = map[string]struct{}{
	"sub": {}, "iat": {}, "exp": {}, "jti": {}, "nbf": {}, "iss": {}, "aud": {},
}

// Claims is the decoded body of a verified token.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Custom    map[string]any
}

// Codec signs and parses tokens with a shared secret. Safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec constructs a codec. A non-positive ttl falls back to DefaultTTL.
func NewCodec(secret []byte, ttl time.Duration, opts ...Option) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Codec{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for subject. Custom claims are merged into the body but
// never override the registered ones.
func (c *Codec) Issue(subject string, custom map[string]any) (model.Token, error) {
	if subject == "" {
		return model.Token{}, fmt.Errorf("%w: empty subject", errs.ErrValidation)
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Token{}, err
	}

	// NumericDate keeps whole seconds, so exp is rounded up to never land
	// before now+ttl.
	now := c.now()
	exp := now.Add(c.ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		exp = t.Add(time.Second)
	}

	claims := jwt.MapClaims{}
	for k, v := range custom {
		if _, reserved := registered[k]; reserved {
			continue
		}
		claims[k] = v
	}
	claims["sub"] = subject
	claims["jti"] = jti.String()
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return model.Token{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Token{AccessToken: signed, ID: jti.String(), ExpiresAt: exp}, nil
}

// Parse verifies structure, signature and expiry, and returns the claims.
func (c *Codec) Parse(tokenString string) (Claims, error) {
	mc, err := c.parse(tokenString, jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	return toClaims(mc)
}

// ExtractSubject parses the token and returns its subject.
func (c *Codec) ExtractSubject(tokenString string) (string, error) {
	cl, err := c.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return cl.Subject, nil
}

// IsExpired reports whether a correctly signed token is past its expiry.
// Malformed or badly signed tokens return the parse error, never false.
func (c *Codec) IsExpired(tokenString string) (bool, error) {
	mc, err := c.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return false, err
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return false, fmt.Errorf("%w: missing exp", errs.ErrTokenMalformed)
	}
	return !c.now().Before(exp.Time), nil
}

// Validate reports whether the token belongs to expectedSubject and is still live.
// A subject mismatch is (false, nil); any extraction failure, expiry included,
// is returned as an error.
func (c *Codec) Validate(tokenString, expectedSubject string) (bool, error) {
	subject, err := c.ExtractSubject(tokenString)
	if err != nil {
		return false, err
	}
	if subject != expectedSubject {
		return false, nil
	}
	expired, err := c.IsExpired(tokenString)
	if err != nil {
		return false, err
	}
	return !expired, nil
}

func (c *Codec) parse(tokenString string, opts ...jwt.ParserOption) (jwt.MapClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	mc := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, mc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return mc, nil
}

// classify maps jwt errors onto the three failure sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", errs.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", errs.ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", errs.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", errs.ErrTokenMalformed, err)
	}
}

func toClaims(mc jwt.MapClaims) (Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, fmt.Errorf("%w: missing sub", errs.ErrTokenMalformed)
	}
	out := Claims{Subject: sub, Custom: map[string]any{}}
	if iat, _ := mc.GetIssuedAt(); iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, _ := mc.GetExpirationTime(); exp != nil {
		out.ExpiresAt = exp.Time
	}
	if jti, ok := mc["jti"].(string); ok {
		out.ID = jti
	}
	for k, v := range mc {
		if _, reserved := registered[k]; !reserved {
			out.Custom[k] = v
		}
	}
	return out, nil
}
