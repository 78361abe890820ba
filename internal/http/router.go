package http

import (
	"log/slog"

	"github.com/geocoder89/younginnovators/internal/cache"
	"github.com/geocoder89/younginnovators/internal/config"
	"github.com/geocoder89/younginnovators/internal/http/handlers"
	"github.com/geocoder89/younginnovators/internal/http/middlewares"
	"github.com/geocoder89/younginnovators/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const usersPrefix = "/api/v1/users"

// Deps is everything the router wires into handlers. Cache, Prom, Gatherer,
// Checks and ShuttingDown are optional.
type Deps struct {
	Config       config.Config
	Log          *slog.Logger
	Store        handlers.UserStore
	Hasher       handlers.PasswordHasher
	Cache        cache.Store
	Prom         *observability.Prom
	Gatherer     prometheus.Gatherer
	Checks       map[string]handlers.Pinger
	ShuttingDown func() bool
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(observability.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(middlewares.SecuritySettings{
		DocsPrefix:    "/docs",
		PrivatePrefix: usersPrefix,
		HSTS:          cfg.IsProd(),
	}))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	}

	// health, docs and metrics

	health := handlers.NewHealthHandler(d.Checks, d.ShuttingDown)

	r.GET("/", handlers.Welcome)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// users

	opts := []handlers.UsersOption{
		handlers.WithLogger(log),
		handlers.WithMetrics(d.Prom),
		handlers.WithStoreTimeout(cfg.RequestTimeout),
	}
	if d.Cache != nil {
		opts = append(opts, handlers.WithCache(d.Cache))
	}

	usersHandler := handlers.NewUsersHandler(d.Store, d.Hasher, opts...)

	limit := func(c *gin.Context) { c.Next() }
	if cfg.AuthRateLimit > 0 && cfg.AuthRateWindow > 0 {
		limiter := middlewares.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
		limit = limiter.RateLimiterMiddleware(middlewares.KeyByIP)
	}

	users := r.Group(usersPrefix)
	{
		users.POST("/register", middlewares.RequireJSON(), limit, usersHandler.Register)
		users.POST("/login", middlewares.RequireJSON(), limit, usersHandler.Login)
		users.GET("/me", usersHandler.Me)
		users.GET("/mentors", usersHandler.Mentors)
	}

	return r
}
