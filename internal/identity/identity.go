// Package identity turns bearer tokens into actors. Tokens carry the user id
// in "sub" and one of donor, ngo or admin in "role".
package identity

import (
	"context"
	"fmt"
	"time"

	"feedchain/pkg/types"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const roleClaim = "role"

type keySource func(ctx context.Context) (jwt.ParseOption, error)

type Verifier struct {
	keys   keySource
	issuer string
}

type VerifierOption func(*Verifier)

// WithIssuer rejects tokens whose "iss" is not issuer.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) { v.issuer = issuer }
}

// NewHMACVerifier verifies HS256 tokens signed with secret.
func NewHMACVerifier(secret []byte, opts ...VerifierOption) *Verifier {
	key := jwt.WithKey(jwa.HS256(), secret)
	return newVerifier(func(context.Context) (jwt.ParseOption, error) { return key, nil }, opts)
}

// NewKeySetVerifier verifies tokens against a fixed key set.
func NewKeySetVerifier(set jwk.Set, opts ...VerifierOption) *Verifier {
	keys := jwt.WithKeySet(set)
	return newVerifier(func(context.Context) (jwt.ParseOption, error) { return keys, nil }, opts)
}

// NewJWKSVerifier verifies tokens against the key set published at url. The
// set is fetched once here and refreshed in the background.
func NewJWKSVerifier(ctx context.Context, url string, opts ...VerifierOption) (*Verifier, error) {
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	if err := cache.Register(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to register jwks url with cache: %w", err)
	}

	return newVerifier(func(ctx context.Context) (jwt.ParseOption, error) {
		set, err := cache.Lookup(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch jwks: %w", err)
		}
		return jwt.WithKeySet(set), nil
	}, opts), nil
}

func newVerifier(keys keySource, opts []VerifierOption) *Verifier {
	v := &Verifier{keys: keys}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates raw. Any problem with the token itself is
// reported as types.ErrUnauthorized. Failing to load keys is returned as is.
func (v *Verifier) Verify(ctx context.Context, raw string) (types.Actor, error) {
	if raw == "" {
		return types.Actor{}, types.Unauthorizedf("missing bearer token")
	}

	keys, err := v.keys(ctx)
	if err != nil {
		return types.Actor{}, err
	}

	opts := []jwt.ParseOption{keys, jwt.WithValidate(true)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return types.Actor{}, types.Unauthorizedf("invalid or expired token")
	}

	userID, ok := token.Subject()
	if !ok || userID == "" {
		return types.Actor{}, types.Unauthorizedf("token has no subject")
	}

	var role string
	if err := token.Get(roleClaim, &role); err != nil {
		return types.Actor{}, types.Unauthorizedf("token has no role")
	}

	actor := types.Actor{UserID: userID, Role: types.Role(role)}
	if !actor.Role.Valid() {
		return types.Actor{}, types.Unauthorizedf("unknown role %q", role)
	}

	return actor, nil
}

// Issuer mints HS256 tokens that an HMAC Verifier with the same secret
// accepts. Used for development and by the token command.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(actor types.Actor) (string, error) {
	if actor.UserID == "" || !actor.Role.Valid() {
		return "", types.Validationf("a user id and one of donor, ngo or admin are required")
	}

	if len(i.secret) == 0 {
		return "", fmt.Errorf("no signing secret configured")
	}

	now := i.now()

	builder := jwt.NewBuilder().
		Subject(actor.UserID).
		IssuedAt(now).
		Expiration(now.Add(i.ttl)).
		Claim(roleClaim, string(actor.Role))
	if i.issuer != "" {
		builder = builder.Issuer(i.issuer)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), i.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}
