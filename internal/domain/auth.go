package domain

import "context"

// TokenVerifier validates one externally issued identity assertion. Every
// failure mode (malformed token, bad signature, wrong issuer or audience,
// expired, missing email claim) collapses to ErrUnauthorized; a partial
// claim set is never returned.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (ClaimSet, error)
}

// IdentityResolver maps a verified email/subject pair to a Principal.
// A clean miss returns (nil, nil); the resolver never auto-provisions.
type IdentityResolver interface {
	Resolve(ctx context.Context, email, subject string) (*Principal, error)
}

// AccessDecider is the single authorization gate. CanAccess is pure and
// total: it always returns a boolean and has no side effects.
type AccessDecider interface {
	CanAccess(principal *Principal, portal Portal) bool
	Require(principal *Principal, portal Portal) error
}
