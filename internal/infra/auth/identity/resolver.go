package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"stationportal/internal/config"
	"stationportal/internal/domain"
	"stationportal/internal/infra/auth/rbac"
)

// User is the row shape the active-user read path returns.
type User struct {
	ID             int64
	Username       string
	Email          string
	Role           string
	StationID      *int64
	StationAcronym string
}

// Pilot is the row shape the active-pilot read path returns.
// AuthorizedStations is the raw station-list field, a JSON array of codes.
type Pilot struct {
	ID                 int64
	FullName           string
	Email              string
	AuthorizedStations string
}

type UserStore interface {
	FindActiveByEmail(ctx context.Context, email string) (*User, error)
	TouchExternalLogin(ctx context.Context, userID int64) error
}

type PilotStore interface {
	FindActiveByEmail(ctx context.Context, email string) (*Pilot, error)
}

// source is one strategy in the resolution chain. A (nil, nil) return means
// "no opinion, try the next source".
type source interface {
	resolve(ctx context.Context, email string) (*domain.Principal, error)
}

// Resolver maps a verified email to a Principal by trying, in order: the
// static global-admin allow-list, the active-user store, the active-pilot
// store. First hit wins; no source ever provisions a new record.
type Resolver struct {
	sources []source
	timeout time.Duration
}

func NewResolver(cfg config.Config, users UserStore, pilots PilotStore) *Resolver {
	r := &Resolver{timeout: cfg.LookupTimeout()}
	r.sources = []source{newAllowList(cfg.AdminEmails)}
	if users != nil {
		r.sources = append(r.sources, &userSource{store: users, timeout: r.timeout})
	}
	if pilots != nil {
		r.sources = append(r.sources, &pilotSource{store: pilots})
	}
	return r
}

// Resolve returns (nil, nil) when no source matches. Store errors and
// timeouts are logged and treated as a miss: an unavailable store denies,
// it never grants.
func (r *Resolver) Resolve(ctx context.Context, email, subject string) (*domain.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.ErrUnauthorized
	}
	for _, src := range r.sources {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		principal, err := src.resolve(lookupCtx, email)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("identity: lookup for %q failed, treating as miss: %v", email, err)
			continue
		}
		if principal != nil {
			return principal, nil
		}
	}
	return nil, nil
}

// allowList grants the global admin role to a fixed set of emails without
// touching any store. The set is immutable after startup.
type allowList struct {
	emails map[string]struct{}
}

func newAllowList(emails []string) *allowList {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		set[email] = struct{}{}
	}
	return &allowList{emails: set}
}

func (a *allowList) resolve(_ context.Context, email string) (*domain.Principal, error) {
	if _, ok := a.emails[email]; !ok {
		return nil, nil
	}
	principal := &domain.Principal{
		Username: email,
		Email:    email,
		Role:     domain.RoleAdmin,
	}
	rbac.Enrich(principal)
	return principal, nil
}

type userSource struct {
	store   UserStore
	timeout time.Duration
}

func (s *userSource) resolve(ctx context.Context, email string) (*domain.Principal, error) {
	user, err := s.store.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	userID := user.ID
	principal := &domain.Principal{
		UserID:         &userID,
		Username:       user.Username,
		Email:          user.Email,
		Role:           domain.Role(user.Role),
		StationID:      user.StationID,
		StationAcronym: user.StationAcronym,
	}
	rbac.Enrich(principal)
	s.touchAsync(userID)
	return principal, nil
}

// touchAsync stamps the user's last external login. It runs detached from
// the request: its failure or delay must never block or fail resolution.
func (s *userSource) touchAsync(userID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.store.TouchExternalLogin(ctx, userID); err != nil {
			log.Printf("identity: last-login update for user %d failed: %v", userID, err)
		}
	}()
}

type pilotSource struct {
	store PilotStore
}

func (s *pilotSource) resolve(ctx context.Context, email string) (*domain.Principal, error) {
	pilot, err := s.store.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if pilot == nil {
		return nil, nil
	}
	pilotID := pilot.ID
	principal := &domain.Principal{
		UserID:             &pilotID,
		Username:           pilot.FullName,
		Email:              pilot.Email,
		Role:               domain.RoleUAVPilot,
		AuthorizedStations: parseStationList(pilot.ID, pilot.AuthorizedStations),
	}
	rbac.Enrich(principal)
	return principal, nil
}

// parseStationList decodes the pilot's station-list field. Malformed data
// degrades to an empty list (the pilot reaches no station) and is logged so
// the data problem is visible.
func parseStationList(pilotID int64, raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		log.Printf("identity: pilot %d has malformed station list, granting none: %v", pilotID, err)
		return nil
	}
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		out = append(out, code)
	}
	return out
}
