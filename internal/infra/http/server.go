package http

import (
	"fmt"
	"net/http"
	"time"

	"stationportal/internal/config"
	"stationportal/internal/domain"
	"stationportal/internal/infra/auth/identity"
	"stationportal/internal/infra/auth/oidc"
	"stationportal/internal/infra/auth/rbac"
	"stationportal/internal/infra/db"
	"stationportal/internal/infra/ratelimit"
	"stationportal/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	access   *usecase.PortalAccess
	decider  domain.AccessDecider
	stations StationStore

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
	rateLimitClosed   bool

	authInitErr error
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, r: r}
	s.initDeps(store)
	s.routes()
	return s
}

// ServerDeps lets tests inject fakes for every collaborator.
type ServerDeps struct {
	Verifier    domain.TokenVerifier
	Resolver    domain.IdentityResolver
	Decider     domain.AccessDecider
	Stations    StationStore
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, r: r}
	s.decider = deps.Decider
	if s.decider == nil {
		s.decider = rbac.NewAuthorizer()
	}
	s.access = usecase.NewPortalAccess(deps.Verifier, deps.Resolver, s.decider)
	s.stations = deps.Stations
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps(store *db.Store) {
	s.decider = rbac.NewAuthorizer()

	verifier, err := oidc.NewVerifier(s.cfg)
	if err != nil {
		s.authInitErr = err
	}

	var users identity.UserStore
	var pilots identity.PilotStore
	if store != nil && store.DB != nil {
		users = db.NewUserRepository(store.DB)
		pilots = db.NewPilotRepository(store.DB)
		s.stations = db.NewStationRepository(store.DB)
	}
	resolver := identity.NewResolver(s.cfg, users, pilots)
	s.access = usecase.NewPortalAccess(verifier, resolver, s.decider)

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitClosed = s.cfg.RateLimitFailClosed
}

// rateLimitMiddleware bounds per-client request rates ahead of
// authentication. Limiter trouble fails open unless configured otherwise.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
			c.Next()
			return
		}
		portal := getPortal(c)
		key := fmt.Sprintf("rl:%s:%s:%s", portal.Type, portal.Station, c.ClientIP())
		decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
		if err != nil {
			if s.rateLimitClosed {
				writeErrorCode(c, http.StatusServiceUnavailable, "RATE_LIMIT_UNAVAILABLE", "try again later")
				c.Abort()
				return
			}
			c.Next()
			return
		}
		if !decision.Allowed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "no-db"
		if s.stations != nil {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})

	api := s.r.Group("/api/v1")
	api.Use(s.portalMiddleware(), s.rateLimitMiddleware(), s.requireAccess())
	{
		api.GET("/me", s.handleMe)
		api.GET("/stations", s.handleListStations)
		api.GET("/stations/:acronym", s.handleGetStation)
	}

	s.r.NoRoute(s.handleNoRoute)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	if s.authInitErr != nil {
		return s.authInitErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
