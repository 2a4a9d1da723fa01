package usecase

import (
	"context"

	"stationportal/internal/domain"
)

// PortalAccess chains the verifier, the resolver and the access decision
// for one request. Every failure on the way short-circuits to "no
// principal"; the decision then fails closed on non-public portals.
type PortalAccess struct {
	Verifier domain.TokenVerifier
	Resolver domain.IdentityResolver
	Decider  domain.AccessDecider
}

func NewPortalAccess(verifier domain.TokenVerifier, resolver domain.IdentityResolver, decider domain.AccessDecider) *PortalAccess {
	return &PortalAccess{Verifier: verifier, Resolver: resolver, Decider: decider}
}

// Authenticate turns a raw assertion into a Principal. A missing, invalid
// or unresolvable assertion yields (nil, nil); only context cancellation
// surfaces as an error, so no partial principal ever escapes an aborted
// request.
func (p *PortalAccess) Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error) {
	if rawToken == "" || p.Verifier == nil || p.Resolver == nil {
		return nil, nil
	}
	claims, err := p.Verifier.Verify(ctx, rawToken)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, nil
	}
	principal, err := p.Resolver.Resolve(ctx, claims.Email, claims.Subject)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, nil
	}
	return principal, nil
}

// Authorize is the full gate: authenticate, then decide. The returned
// principal may be nil on public portals.
func (p *PortalAccess) Authorize(ctx context.Context, rawToken string, portal domain.Portal) (*domain.Principal, error) {
	principal, err := p.Authenticate(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if err := p.Decider.Require(principal, portal); err != nil {
		return nil, err
	}
	return principal, nil
}
