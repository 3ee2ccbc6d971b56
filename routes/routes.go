package routes

import (
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"eventsphere/config"
	"eventsphere/middlewares"
	"eventsphere/models"
	"eventsphere/utils"
)

// Options carries everything the HTTP layer depends on. Redis and Metrics are optional.
type Options struct {
	Config  *config.Config
	Store   *models.Store
	Tokens  *utils.TokenManager
	Redis   *redis.Client
	Metrics *middlewares.Metrics
	Logger  zerolog.Logger
}

// deps is what the handlers share.
type deps struct {
	store      *models.Store
	events     models.EventRepository
	users      models.UserRepository
	regs       models.RegistrationRepository
	tokens     *utils.TokenManager
	inv        *utils.CacheInvalidator
	metrics    *middlewares.Metrics
	bcryptCost int
	dummyHash  string // compared against when the username is unknown
}

func newDeps(o Options) (*deps, error) {
	dummy, err := utils.HashPassword("eventsphere-dummy-password", o.Config.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	return &deps{
		store:      o.Store,
		events:     o.Store.Events,
		users:      o.Store.Users,
		regs:       o.Store.Registrations,
		tokens:     o.Tokens,
		inv:        utils.NewCacheInvalidator(o.Redis),
		metrics:    o.Metrics,
		bcryptCost: o.Config.Auth.BcryptCost,
		dummyHash:  dummy,
	}, nil
}

// NewEngine builds the gin engine with the global middleware chain and every route.
// The returned func stops the rate limiters' background sweeps.
func NewEngine(o Options) (*gin.Engine, func(), error) {
	server := gin.New()
	// ClientIP keys the rate limiters, so forwarded headers are not trusted.
	_ = server.SetTrustedProxies(nil)

	// Metrics wraps Recovery and ErrorHandler so it sees the final status.
	server.Use(
		middlewares.RequestLogger(o.Logger),
		o.Metrics.Middleware(),
		middlewares.Recovery(),
		middlewares.ErrorHandler(),
	)

	stop, err := RegisterRoutes(server, o)
	if err != nil {
		return nil, nil, err
	}
	return server, stop, nil
}

// RegisterRoutes mounts the API on server:
//
//	/api/users         public, stricter per-IP limit
//	/api/events        authenticated; writes need the organizer role
//	/api/registrations authenticated; attendee lists need the organizer role
func RegisterRoutes(server *gin.Engine, o Options) (func(), error) {
	d, err := newDeps(o)
	if err != nil {
		return nil, err
	}
	cfg := o.Config

	// ===== global per-IP limit =====
	globalLimiter := middlewares.NewRateLimiter(
		middlewares.WindowLimit(cfg.RateLimit.Max, cfg.RateLimit.Window, cfg.RateLimit.Window))
	server.Use(globalLimiter.Middleware(middlewares.ByClientIP("ip:")))

	server.GET("/", d.welcome)
	server.GET("/healthz", d.healthz)
	if o.Metrics != nil {
		server.GET("/metrics", gin.WrapH(o.Metrics.Handler()))
	}
	server.NoRoute(staticOrNotFound(cfg.Server.StaticDir))

	api := server.Group("/api")

	// ===== register / login: stricter per-IP limit =====
	authLimiter := middlewares.NewRateLimiter(
		middlewares.WindowLimit(cfg.RateLimit.AuthPerMinute, time.Minute, 10*time.Minute))
	users := api.Group("/users", authLimiter.Middleware(middlewares.ByClientIP("auth:")))
	users.POST("/register", middlewares.ValidateBody[models.UserInput](), d.registerUser)
	users.POST("/login", middlewares.ValidateBody[models.LoginInput](), d.login)

	// ===== authenticated: token, then daily quota per user =====
	auth := api.Group("",
		middlewares.Authenticate(o.Tokens),
		middlewares.Quota(o.Redis, middlewares.QuotaRule{
			Limit:  cfg.RateLimit.DailyQuota,
			Window: 24 * time.Hour,
			KeyFn:  middlewares.QuotaByIdentity("quota:day:user:"),
		}),
	)
	cache := middlewares.ResponseCache(o.Redis, cfg.Redis.CacheTTL)
	organizer := middlewares.RequireRole(models.RoleOrganizer)

	events := auth.Group("/events")
	events.GET("", cache, d.listEvents)
	events.GET("/stats", cache, d.eventStats)
	events.GET("/:id", cache, d.getEvent)
	events.POST("", organizer, middlewares.ValidateBody[models.EventInput](), d.createEvent)
	events.PUT("/:id", organizer, middlewares.ValidateBody[models.EventPatch](), d.updateEvent)
	events.DELETE("/:id", organizer, d.deleteEvent)

	regs := auth.Group("/registrations")
	regs.POST("/:eventId", d.registerForEvent)
	regs.DELETE("/:eventId", d.cancelRegistration)
	regs.GET("/:eventId/attendees", organizer, d.listAttendees)
	regs.GET("/:eventId/attendees/csv", organizer, d.exportAttendees)

	return func() {
		globalLimiter.Stop()
		authLimiter.Stop()
	}, nil
}

// GET /
func (d *deps) welcome(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to EventSphere")
}

// GET /healthz
func (d *deps) healthz(c *gin.Context) {
	if err := d.store.Ping(c.Request.Context()); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("store ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// staticOrNotFound serves the bundled client from dir for unknown GET paths outside /api.
func staticOrNotFound(dir string) gin.HandlerFunc {
	var files http.FileSystem
	if info, err := os.Stat(dir); dir != "" && err == nil && info.IsDir() {
		files = http.Dir(dir)
	}
	var fileServer http.Handler
	if files != nil {
		fileServer = http.FileServer(files)
	}

	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if files != nil && (c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead) &&
			!strings.HasPrefix(p, "/api/") {
			if f, err := files.Open(path.Clean(p)); err == nil {
				_ = f.Close()
				fileServer.ServeHTTP(c.Writer, c.Request)
				c.Abort()
				return
			}
		}
		_ = c.Error(middlewares.NewNotFoundError("Route not found"))
	}
}
