package router

import (
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/capacity"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/config"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/handler"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/metrics"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/middleware"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/service"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the infrastructure handles built by the serve command.
type Deps struct {
	// DB is nil with the memory storage driver.
	DB    *gorm.DB
	Store repository.Store
	// Redis and Events are nil when events are disabled.
	Redis  *redis.Client
	Events *worker.Dispatcher
	Clock  clock.Clock
}

// Services is the application layer shared by the router and the CLI.
type Services struct {
	Sessions service.SessionService
	Parking  service.ParkingService
	Billing  service.BillingService
}

// NewServices wires the registry and the services over d.
func NewServices(cfg *config.Config, d Deps) *Services {
	var events service.EventPublisher
	if d.Events != nil {
		events = d.Events
	}
	reg := service.NewRegistry(d.Store, d.Clock, events)
	tracker := capacity.NewTracker(map[model.VehicleCategory]int{
		model.VehicleCar:        cfg.CapacityCar,
		model.VehicleMotorcycle: cfg.CapacityMotorcycle,
	})
	return &Services{
		Sessions: service.NewSessionService(reg),
		Parking:  service.NewParkingService(reg, tracker),
		Billing:  service.NewBillingService(d.Store, d.Clock),
	}
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Registry ← Store ← DB/Redis
func New(cfg *config.Config, d Deps, svc *Services) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))

	// ── Handlers ─────────────────────────────────────────────────────────────
	sessionsH := handler.NewSessionsHandler(svc.Sessions)
	vehiclesH := handler.NewVehiclesHandler(svc.Parking, svc.Sessions)
	billingH := handler.NewBillingHandler(svc.Billing)
	reportsH := handler.NewReportsHandler(d.Redis)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	var breaker handler.BreakerReporter
	if d.Events != nil {
		breaker = d.Events
	}
	r.GET("/health", handler.Health(d.DB, d.Redis, breaker))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	all := middleware.RequireRole(model.AllRoles...)
	privileged := middleware.RequireRole(model.RoleSupervisor, model.RoleAdmin)
	admin := middleware.RequireRole(model.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		// Reopen, reverse, correction and delete are open to every role at the
		// route level; the services reject and audit unprivileged attempts.
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", all, sessionsH.Open)
			sessions.GET("", privileged, sessionsH.History)
			sessions.GET("/active", all, sessionsH.Active)
			sessions.GET("/:id", all, sessionsH.Get)
			sessions.POST("/:id/close", all, sessionsH.Close)
			sessions.POST("/:id/reopen", all, sessionsH.Reopen)
			sessions.PATCH("/:id/initial-value", all, sessionsH.CorrectInitialValue)
			sessions.POST("/:id/transactions", all, sessionsH.RecordTransaction)
			sessions.GET("/:id/transactions", all, sessionsH.ListTransactions)
			sessions.POST("/:id/transactions/:txid/reverse", all, sessionsH.Reverse)
			sessions.GET("/:id/totals", all, sessionsH.Totals)
			sessions.GET("/:id/breakdown", all, sessionsH.Breakdown)
			sessions.GET("/:id/audit", privileged, sessionsH.Audit)
		}

		vehicles := v1.Group("/vehicles", all)
		{
			vehicles.POST("", vehiclesH.Enter)
			vehicles.GET("", vehiclesH.ListInside)
			vehicles.GET("/:id/quote", vehiclesH.Quote)
			vehicles.POST("/:id/exit", vehiclesH.Exit)
			vehicles.DELETE("/:id", vehiclesH.Delete)
		}

		v1.GET("/capacity", all, vehiclesH.Capacity)
		v1.GET("/capacity/:category", all, vehiclesH.Capacity)

		v1.POST("/fees/compute", all, billingH.ComputeFee)
		v1.GET("/billing-rules", all, billingH.ListRules)
		rules := v1.Group("/billing-rules", admin)
		{
			rules.POST("", billingH.CreateRule)
			rules.POST("/:id/activate", billingH.ActivateRule)
		}

		v1.GET("/reports/daily/:date", privileged, reportsH.Daily)
	}

	// Swagger UI, outside production only
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
