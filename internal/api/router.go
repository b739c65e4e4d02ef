package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/app"
	iauth "github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/handlers"
	"github.com/taskhive/taskhive/internal/middleware"
	"github.com/taskhive/taskhive/internal/realtime"
	"github.com/taskhive/taskhive/internal/services"
	"github.com/taskhive/taskhive/pkg/mail"
)

// Services bundles the constructed service layer so the router, maintenance
// jobs and tests share one wiring point.
type Services struct {
	Users         *services.UserService
	Activities    *services.ActivityService
	Notifications *services.NotificationService
	Lists         *services.ListService
	Tasks         *services.TaskService
	Invitations   *services.InvitationService
	Hub           *realtime.Hub
}

// BuildServices wires the service layer over the shared database handle. The
// hub authorizes list-room joins through the list service's membership check.
func BuildServices(db *gorm.DB, mailer mail.Mailer, baseURL string) (*Services, error) {
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	activities, err := services.NewActivityService(db)
	if err != nil {
		return nil, err
	}

	// The hub needs the list service for membership checks and the list
	// service needs the hub for publication; the closure breaks the cycle.
	var lists *services.ListService
	hub := realtime.NewHub(func(ctx context.Context, uid, listID string) bool {
		if lists == nil {
			return false
		}
		return lists.IsMember(ctx, uid, listID)
	})

	notifications, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	lists, err = services.NewListService(db, activities, notifications, users, hub)
	if err != nil {
		return nil, err
	}
	tasks, err := services.NewTaskService(db, lists, activities, notifications, users, hub)
	if err != nil {
		return nil, err
	}
	invitations, err := services.NewInvitationService(db, lists, activities, notifications, users, hub, mailer, baseURL)
	if err != nil {
		return nil, err
	}

	return &Services{
		Users:         users,
		Activities:    activities,
		Notifications: notifications,
		Lists:         lists,
		Tasks:         tasks,
		Invitations:   invitations,
		Hub:           hub,
	}, nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, resolver *iauth.Resolver, jwt *iauth.JWTService, svc *Services, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	r.NoRoute(middleware.NotFoundHandler)

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(db, resolver, jwt)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	registerAuthRoutes(r, authHandler)

	// Protected routes
	requireAuth := middleware.Auth(resolver)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	registerListRoutes(api, svc)
	registerInvitationRoutes(api, svc)
	registerNotificationRoutes(api, svc)
	registerRealtimeRoutes(api, svc)

	return r, nil
}
