package oidc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"stationportal/internal/config"
	"stationportal/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// certsPath is the well-known key-set endpoint the access gateway publishes
// under its issuer URL.
const certsPath = "/cdn-cgi/access/certs"

// Verifier validates identity assertions issued by the upstream access
// gateway. All failure modes collapse to domain.ErrUnauthorized: callers
// treat a failed verification as "unauthenticated", never as a fault.
type Verifier struct {
	issuer    string
	audience  string
	clockSkew time.Duration
	jwks      *jwksCache
	parser    *jwt.Parser
}

type Option func(*Verifier)

func WithHTTPClient(client *http.Client) Option {
	return func(v *Verifier) {
		if client != nil {
			v.jwks.httpClient = client
		}
	}
}

func NewVerifier(cfg config.Config, opts ...Option) (*Verifier, error) {
	issuer := strings.TrimSpace(cfg.IssuerURL)
	if issuer == "" {
		return nil, errors.New("AUTH_ISSUER_URL is required")
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		jwksURL = strings.TrimRight(issuer, "/") + certsPath
	}
	v := &Verifier{
		issuer:    issuer,
		audience:  strings.TrimSpace(cfg.Audience),
		clockSkew: cfg.ClockSkew(),
		jwks:      newJWKSCache(jwksURL, nil),
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.clockSkew),
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}
	v.parser = jwt.NewParser(parserOpts...)
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type assertionClaims struct {
	Email         string `json:"email"`
	IdentityNonce string `json:"identity_nonce"`
	jwt.RegisteredClaims
}

// Verify checks signature, issuer, audience and validity window, and
// requires a usable email claim. It never returns a partial claim set.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domain.ClaimSet, error) {
	if v == nil {
		return domain.ClaimSet{}, domain.ErrUnauthorized
	}
	tokenString := strings.TrimSpace(rawToken)
	if tokenString == "" || strings.Count(tokenString, ".") != 2 {
		return domain.ClaimSet{}, domain.ErrUnauthorized
	}
	claims := &assertionClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.jwks.getKey(ctx, kid)
	})
	if err != nil || !token.Valid {
		return domain.ClaimSet{}, domain.ErrUnauthorized
	}
	// A token without an email cannot be resolved to anyone; treat it the
	// same as a malformed token rather than passing it downstream.
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return domain.ClaimSet{}, domain.ErrUnauthorized
	}
	out := domain.ClaimSet{
		Email:         email,
		Subject:       claims.Subject,
		IdentityNonce: claims.IdentityNonce,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
