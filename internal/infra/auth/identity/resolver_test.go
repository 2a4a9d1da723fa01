package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"stationportal/internal/config"
	"stationportal/internal/domain"
)

type fakeUserStore struct {
	users   map[string]*User
	err     error
	lookups int
	touched chan int64
}

func (f *fakeUserStore) FindActiveByEmail(_ context.Context, email string) (*User, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserStore) TouchExternalLogin(_ context.Context, userID int64) error {
	if f.touched != nil {
		f.touched <- userID
	}
	return nil
}

type fakePilotStore struct {
	pilots  map[string]*Pilot
	err     error
	lookups int
}

func (f *fakePilotStore) FindActiveByEmail(_ context.Context, email string) (*Pilot, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	pilot, ok := f.pilots[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return pilot, nil
}

func testConfig(adminEmails ...string) config.Config {
	return config.Config{AdminEmails: adminEmails, LookupTimeoutSecs: 1}
}

func TestResolveAllowListSkipsStores(t *testing.T) {
	users := &fakeUserStore{}
	pilots := &fakePilotStore{}
	r := NewResolver(testConfig("Root@Example.org"), users, pilots)

	principal, err := r.Resolve(context.Background(), "ROOT@example.ORG", "sub-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal == nil || principal.Role != domain.RoleAdmin {
		t.Fatalf("expected admin principal, got %+v", principal)
	}
	if principal.UserID != nil {
		t.Fatalf("allow-list principals carry no user id")
	}
	if !principal.EditPrivileges || !principal.HasPermission("admin") {
		t.Fatalf("expected full permissions, got %v", principal.Permissions)
	}
	if users.lookups != 0 || pilots.lookups != 0 {
		t.Fatalf("allow-list hit must not touch any store")
	}
}

func TestResolveUserRecordAndLastLogin(t *testing.T) {
	stationID := int64(3)
	touched := make(chan int64, 1)
	users := &fakeUserStore{
		users: map[string]*User{
			"anna@example.org": {
				ID:             42,
				Username:       "anna",
				Email:          "anna@example.org",
				Role:           "station-admin",
				StationID:      &stationID,
				StationAcronym: "SVB",
			},
		},
		touched: touched,
	}
	r := NewResolver(testConfig(), users, &fakePilotStore{})

	principal, err := r.Resolve(context.Background(), "Anna@Example.org", "sub-2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal == nil || principal.Role != domain.RoleStationAdmin {
		t.Fatalf("expected station-admin, got %+v", principal)
	}
	if principal.UserID == nil || *principal.UserID != 42 {
		t.Fatalf("expected user id 42")
	}
	if principal.StationAcronym != "SVB" {
		t.Fatalf("expected station binding, got %+v", principal)
	}
	if !principal.EditPrivileges {
		t.Fatalf("station-admin must carry edit privileges")
	}

	select {
	case id := <-touched:
		if id != 42 {
			t.Fatalf("touched wrong user %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected fire-and-forget last-login update")
	}
}

func TestResolvePilotRecord(t *testing.T) {
	pilots := &fakePilotStore{
		pilots: map[string]*Pilot{
			"pilot@example.org": {
				ID:                 7,
				FullName:           "Pia Pilot",
				Email:              "pilot@example.org",
				AuthorizedStations: `["SVB","ANS"]`,
			},
		},
	}
	r := NewResolver(testConfig(), &fakeUserStore{}, pilots)

	principal, err := r.Resolve(context.Background(), "pilot@example.org", "sub-3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal == nil || principal.Role != domain.RoleUAVPilot {
		t.Fatalf("expected pilot principal, got %+v", principal)
	}
	if principal.StationAcronym != "" {
		t.Fatalf("pilots carry no station binding")
	}
	if len(principal.AuthorizedStations) != 2 || principal.AuthorizedStations[0] != "SVB" {
		t.Fatalf("unexpected station list %v", principal.AuthorizedStations)
	}
	if !principal.HasPermission("flight-log") || principal.EditPrivileges {
		t.Fatalf("unexpected pilot permissions %v", principal.Permissions)
	}
}

func TestResolvePilotMalformedStationList(t *testing.T) {
	pilots := &fakePilotStore{
		pilots: map[string]*Pilot{
			"pilot@example.org": {ID: 7, Email: "pilot@example.org", AuthorizedStations: `{"oops":`},
		},
	}
	r := NewResolver(testConfig(), &fakeUserStore{}, pilots)

	principal, err := r.Resolve(context.Background(), "pilot@example.org", "sub-4")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal == nil {
		t.Fatalf("malformed data still resolves the pilot")
	}
	if len(principal.AuthorizedStations) != 0 {
		t.Fatalf("malformed station list must degrade to empty, got %v", principal.AuthorizedStations)
	}
}

func TestResolveUserBeatsPilot(t *testing.T) {
	users := &fakeUserStore{
		users: map[string]*User{
			"both@example.org": {ID: 1, Username: "both", Email: "both@example.org", Role: "readonly"},
		},
	}
	pilots := &fakePilotStore{
		pilots: map[string]*Pilot{
			"both@example.org": {ID: 2, Email: "both@example.org"},
		},
	}
	r := NewResolver(testConfig(), users, pilots)

	principal, err := r.Resolve(context.Background(), "both@example.org", "sub-5")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal == nil || principal.Role != domain.RoleReadonly {
		t.Fatalf("user record must win over pilot record, got %+v", principal)
	}
	if pilots.lookups != 0 {
		t.Fatalf("chain must stop at the first hit")
	}
}

func TestResolveMissReturnsNothing(t *testing.T) {
	users := &fakeUserStore{}
	pilots := &fakePilotStore{}
	r := NewResolver(testConfig("admin@example.org"), users, pilots)

	principal, err := r.Resolve(context.Background(), "stranger@example.org", "sub-6")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal != nil {
		t.Fatalf("unknown identity must not resolve, got %+v", principal)
	}
	if users.lookups != 1 || pilots.lookups != 1 {
		t.Fatalf("both stores should have been consulted once")
	}
}

func TestResolveStoreErrorFailsClosed(t *testing.T) {
	users := &fakeUserStore{err: errors.New("connection refused")}
	pilots := &fakePilotStore{err: errors.New("connection refused")}
	r := NewResolver(testConfig(), users, pilots)

	principal, err := r.Resolve(context.Background(), "anna@example.org", "sub-7")
	if err != nil {
		t.Fatalf("store trouble must not surface: %v", err)
	}
	if principal != nil {
		t.Fatalf("store trouble must deny, got %+v", principal)
	}
}

func TestResolveEmptyEmailRejected(t *testing.T) {
	r := NewResolver(testConfig(), &fakeUserStore{}, &fakePilotStore{})
	if _, err := r.Resolve(context.Background(), "   ", "sub-8"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	users := &fakeUserStore{err: context.Canceled}
	r := NewResolver(testConfig(), users, &fakePilotStore{})
	if _, err := r.Resolve(ctx, "anna@example.org", "sub-9"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to surface, got %v", err)
	}
}
