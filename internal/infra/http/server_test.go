package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stationportal/internal/config"
	"stationportal/internal/domain"
	"stationportal/internal/infra/auth/rbac"
	"stationportal/internal/infra/db"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims map[string]domain.ClaimSet
}

func (f *fakeVerifier) Verify(_ context.Context, rawToken string) (domain.ClaimSet, error) {
	claims, ok := f.claims[rawToken]
	if !ok {
		return domain.ClaimSet{}, domain.ErrUnauthorized
	}
	return claims, nil
}

type fakeResolver struct {
	principals map[string]*domain.Principal
}

func (f *fakeResolver) Resolve(_ context.Context, email, _ string) (*domain.Principal, error) {
	return f.principals[email], nil
}

type fakeStations struct {
	stations []db.Station
}

func (f *fakeStations) List(_ context.Context) ([]db.Station, error) {
	return f.stations, nil
}

func (f *fakeStations) GetByAcronym(_ context.Context, acronym string) (*db.Station, error) {
	for _, s := range f.stations {
		if strings.EqualFold(s.Acronym, acronym) {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func testServerConfig() config.Config {
	return config.Config{
		AssertionHeader: "Cf-Access-Jwt-Assertion",
		SubdomainHeader: "X-Subdomain",
		TunnelDomain:    "trycloudflare.com",
	}
}

func buildPrincipal(role domain.Role, acronym string, stations ...string) *domain.Principal {
	p := &domain.Principal{
		Username:           "tester",
		Email:              "tester@example.org",
		Role:               role,
		StationAcronym:     acronym,
		AuthorizedStations: stations,
	}
	rbac.Enrich(p)
	return p
}

func newTestServer(cfg config.Config) *Server {
	verifier := &fakeVerifier{claims: map[string]domain.ClaimSet{
		"admin-token":   {Email: "root@example.org", Subject: "sub-1"},
		"station-token": {Email: "svb@example.org", Subject: "sub-2"},
		"pilot-token":   {Email: "pilot@example.org", Subject: "sub-3"},
	}}
	resolver := &fakeResolver{principals: map[string]*domain.Principal{
		"root@example.org":  buildPrincipal(domain.RoleAdmin, ""),
		"svb@example.org":   buildPrincipal(domain.RoleStation, "SVB"),
		"pilot@example.org": buildPrincipal(domain.RoleUAVPilot, "", "SVB", "ANS"),
	}}
	return NewServerWithDeps(cfg, ServerDeps{
		Verifier: verifier,
		Resolver: resolver,
		Stations: &fakeStations{stations: []db.Station{
			{ID: 1, Acronym: "SVB", Name: "Svartberget"},
			{ID: 2, Acronym: "LON", Name: "Lonnstorp"},
		}},
	})
}

func doRequest(s *Server, host, path, token, subdomainHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "http://"+host+path, nil)
	req.Host = host
	if token != "" {
		req.Header.Set("Cf-Access-Jwt-Assertion", token)
	}
	if subdomainHeader != "" {
		req.Header.Set("X-Subdomain", subdomainHeader)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(testServerConfig())
	w := doRequest(s, "example.org", "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAnonymousDeniedOffPublic(t *testing.T) {
	s := newTestServer(testServerConfig())
	for _, host := range []string{"admin.example.org", "svb.example.org"} {
		w := doRequest(s, host, "/api/v1/me", "", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", host, w.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Code != "ACCESS_DENIED" || body.Message != "access denied" {
			t.Fatalf("denials must stay generic, got %+v", body)
		}
	}
}

func TestGlobalAdminBypassesTenantBinding(t *testing.T) {
	s := newTestServer(testServerConfig())
	w := doRequest(s, "lon.example.org", "/api/v1/me", "admin-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body principalResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Role != "admin" || !body.EditPrivileges {
		t.Fatalf("unexpected principal %+v", body)
	}
}

func TestStationUserScopedToOwnPortal(t *testing.T) {
	s := newTestServer(testServerConfig())

	if w := doRequest(s, "svb.example.org", "/api/v1/me", "station-token", ""); w.Code != http.StatusOK {
		t.Fatalf("own portal: expected 200, got %d", w.Code)
	}

	w := doRequest(s, "lon.example.org", "/api/v1/me", "station-token", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign portal: expected 403, got %d", w.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "ACCESS_DENIED" || body.Message != "access denied" {
		t.Fatalf("wrong-tenant denial must not differ from unknown-email denial, got %+v", body)
	}
}

func TestTunnelHostUsesOverrideHeader(t *testing.T) {
	s := newTestServer(testServerConfig())

	if w := doRequest(s, "random-words.trycloudflare.com", "/api/v1/me", "station-token", "svb"); w.Code != http.StatusOK {
		t.Fatalf("override svb: expected 200, got %d", w.Code)
	}
	// Without the override header the tunnel host is the public portal,
	// where /me has no principal requirement satisfied for this route.
	if w := doRequest(s, "random-words.trycloudflare.com", "/api/v1/stations", "", ""); w.Code != http.StatusOK {
		t.Fatalf("public portal listing: expected 200, got %d", w.Code)
	}
}

func TestStationListVisibility(t *testing.T) {
	s := newTestServer(testServerConfig())

	w := doRequest(s, "www.example.org", "/api/v1/stations", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var anon struct {
		Stations []stationResponse `json:"stations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &anon); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(anon.Stations) != 2 {
		t.Fatalf("public catalogue lists everything, got %v", anon.Stations)
	}

	w = doRequest(s, "svb.example.org", "/api/v1/stations", "station-token", "")
	var scoped struct {
		Stations []stationResponse `json:"stations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &scoped); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(scoped.Stations) != 1 || scoped.Stations[0].Acronym != "SVB" {
		t.Fatalf("station user sees only the bound station, got %v", scoped.Stations)
	}
}

func TestStationDetailGate(t *testing.T) {
	s := newTestServer(testServerConfig())

	if w := doRequest(s, "svb.example.org", "/api/v1/stations/svb", "pilot-token", ""); w.Code != http.StatusOK {
		t.Fatalf("authorized pilot: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doRequest(s, "svb.example.org", "/api/v1/stations/lon", "station-token", ""); w.Code != http.StatusForbidden {
		t.Fatalf("foreign station detail: expected 403, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindowSeconds = 60
	s := newTestServer(cfg)

	for i := 0; i < 2; i++ {
		if w := doRequest(s, "www.example.org", "/api/v1/stations", "", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := doRequest(s, "www.example.org", "/api/v1/stations", "", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
