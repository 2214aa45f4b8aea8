package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/config"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/mesh"
	"github.com/Armour007/grc-backend/internal/repository"
	"github.com/Armour007/grc-backend/internal/utils"
	"github.com/Armour007/grc-backend/pkg/logger"
)

// Server owns the HTTP surface and the collaborators its handlers share.
type Server struct {
	cfg     *config.Config
	tokens  *utils.TokenIssuer
	bus     mesh.Bus
	redis   *redis.Client
	log     *logger.Logger
	now     func() time.Time
	tracing bool
	docs    map[string]any
}

// Option customises a Server.
type Option func(*Server)

// WithBus sets the bus record changes are published on.
func WithBus(b mesh.Bus) Option { return func(s *Server) { s.bus = b } }

// WithRedis enables the shared rate limiter.
func WithRedis(rc *redis.Client) Option { return func(s *Server) { s.redis = rc } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithTracing adds the otelgin middleware to the router.
func WithTracing() Option { return func(s *Server) { s.tracing = true } }

func NewServer(cfg *config.Config, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		tokens: utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL),
		log:    log.WithComponent("api"),
		now:    time.Now,
		docs:   openAPIDoc(),
	}
	for _, o := range opts {
		o(s)
	}
	s.tokens.Now = s.now
	return s
}

// store resolves the shared connection; it is opened on the first request that needs it.
func (s *Server) store() (*repository.Store, error) {
	conn, err := database.Handle()
	if err != nil {
		return nil, err
	}
	return repository.New(conn), nil
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(s.cfg.Server.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(s.cfg.Server.TrustedProxies); err != nil {
			s.log.Warn().Err(err).Msg("failed to set trusted proxies")
		}
	}
	if s.tracing {
		router.Use(otelgin.Middleware(s.cfg.App.Name))
	}
	router.Use(MetricsMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger(s.log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "GRC API is running"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/readyz", s.Ready)
	router.GET("/api/docs/openapi.json", s.OpenAPIJSON)

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "env": s.cfg.App.Environment})
	})

	auth := api.Group("/auth")
	{
		limited := auth.Group("", s.authLimiter())
		limited.POST("/register", s.Register)
		limited.POST("/login", s.Login)
		auth.GET("/profile", s.AuthMiddleware(), s.Profile)
	}

	protected := api.Group("", s.AuthMiddleware())
	{
		users := protected.Group("/users")
		users.GET("", RequireRoles(grc.UserDirectoryReaders), s.ListUsers)
		users.PUT("/profile", s.UpdateProfile)
		users.GET("/:id", s.GetUser)
		users.PUT("/:id", RequireRoles(grc.UserAdmins), s.UpdateUser)
		users.DELETE("/:id", RequireRoles(grc.UserAdmins), s.DeleteUser)

		assetResource().routes(s, protected)
		riskResource().routes(s, protected)
		controlResource().routes(s, protected)
		frameworkResource().routes(s, protected)
		evidenceResource().routes(s, protected)
		auditResource().routes(s, protected)
		bcmResource().routes(s, protected)
		policies := policyResource()
		policies.routes(s, protected)
		protected.POST("/policies/:id/attest", s.AttestPolicy)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found - " + c.Request.URL.Path})
	})
	return router
}

// Ready reports whether the database, and redis when configured, answer within a short deadline.
func (s *Server) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 300*time.Millisecond)
	defer cancel()
	if err := database.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "database unreachable"})
		return
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "redis ping failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) authLimiter() gin.HandlerFunc {
	rpm := s.cfg.RateLimit.AuthPerMinute
	if s.redis != nil {
		return RedisRateLimitMiddleware(s.redis, rpm, s.log)
	}
	return RateLimitMiddleware(rpm)
}

func currentUser(c *gin.Context) *database.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*database.User)
	return u
}
