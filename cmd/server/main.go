// cmd/server/main.go - AdBoard Backend Server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adboard-backend/internal/config"
	"adboard-backend/internal/database"
	"adboard-backend/internal/handlers"
	"adboard-backend/internal/middleware"
	"adboard-backend/internal/services"
	"adboard-backend/internal/ws"
	"adboard-backend/pkg/auth"
	"adboard-backend/pkg/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var appVersion = "1.0.0"

func main() {
	cfg := config.Load()

	log := setupLogger(cfg)

	log.WithFields(logrus.Fields{
		"version":  appVersion,
		"env":      cfg.Env,
		"database": cfg.DatabaseName,
	}).Info("starting adboard backend")

	db, err := database.NewMongoDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("error disconnecting from MongoDB")
		}
	}()

	if err := db.CreateIndexes(context.Background()); err != nil {
		log.WithError(err).Warn("failed to create some indexes")
	}

	validator.Init()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiration)*time.Hour)

	// Notification pipeline.
	hub := ws.NewHub(log)
	go hub.Run()

	transport := services.NewFCMClient(cfg.FCMServerKey, cfg.FCMTimeout, log)
	preferenceService := services.NewPreferenceService(db.Database.Collection("notification_preferences"))
	deviceService := services.NewDeviceService(db.Database.Collection("device_tokens"), log)
	deliveryService := services.NewDeliveryService(db.Database.Collection("push_notifications"))
	pushService := services.NewPushService(
		preferenceService,
		deviceService,
		deliveryService,
		transport,
		hub,
		cfg.PushWorkers,
		log,
	)
	triggers := services.NewNotificationTriggers(pushService, log)
	trackingService := services.NewTrackingService(db.Database, triggers, log)
	emailService := services.NewEmailService(cfg, log)

	// Handlers.
	authHandler := handlers.NewAuthHandler(
		db.Database.Collection("users"),
		jwtManager,
		triggers,
		emailService,
		log,
	)
	billboardHandler := handlers.NewBillboardHandler(
		db.Database.Collection("billboards"),
		db.Database.Collection("wishlists"),
		trackingService,
		triggers,
	)
	notificationHandler := handlers.NewNotificationHandler(
		pushService,
		deviceService,
		preferenceService,
		deliveryService,
	)
	wsHandler := ws.NewHandler(hub, jwtManager, log)

	router := setupRouter(cfg, log, jwtManager, authHandler, billboardHandler, notificationHandler, wsHandler)

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	} else {
		log.Info("server gracefully stopped")
	}
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	} else {
		gin.SetMode(gin.DebugMode)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func setupRouter(
	cfg *config.Config,
	log *logrus.Logger,
	jwtManager *auth.JWTManager,
	authHandler *handlers.AuthHandler,
	billboardHandler *handlers.BillboardHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *ws.Handler,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		router.Use(limiter.RateLimit())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appVersion,
		})
	})

	// Live notification feed, authenticated via query token.
	router.GET("/ws", wsHandler.HandleWebSocket)

	v1 := router.Group("/api/v1")
	{
		// Public routes.
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		v1.GET("/billboards", billboardHandler.GetBillboards)

		// Tracking works for both anonymous and authenticated actors.
		tracked := v1.Group("")
		tracked.Use(middleware.OptionalAuthMiddleware(jwtManager))
		{
			tracked.GET("/billboards/:id", billboardHandler.GetBillboard)
			tracked.POST("/billboards/:id/lead", billboardHandler.TrackLead)
			tracked.POST("/billboards/:id/view", billboardHandler.TrackView)
		}

		// Protected routes.
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager))
		{
			protected.GET("/users/me", authHandler.GetProfile)
			protected.PUT("/users/me", authHandler.UpdateProfile)

			protected.POST("/billboards", billboardHandler.CreateBillboard)
			protected.GET("/billboards/my", billboardHandler.GetMyBillboards)
			protected.PUT("/billboards/:id", billboardHandler.UpdateBillboard)
			protected.POST("/billboards/:id/toggle-active", billboardHandler.ToggleActive)

			protected.GET("/wishlist", billboardHandler.GetWishlist)
			protected.POST("/billboards/:id/wishlist", billboardHandler.AddToWishlist)
			protected.DELETE("/billboards/:id/wishlist", billboardHandler.RemoveFromWishlist)

			protected.GET("/notifications", notificationHandler.GetNotifications)
			protected.GET("/notifications/stats", notificationHandler.GetStats)
			protected.GET("/notifications/categories", notificationHandler.GetCategories)
			protected.POST("/notifications/:id/mark-opened", notificationHandler.MarkAsOpened)
			protected.POST("/notifications/mark-all-opened", notificationHandler.MarkAllAsOpened)

			protected.POST("/notifications/devices", notificationHandler.RegisterDevice)
			protected.DELETE("/notifications/devices", notificationHandler.UnregisterDevice)
			protected.GET("/notifications/devices", notificationHandler.ListDevices)

			protected.GET("/notifications/preferences", notificationHandler.GetPreferences)
			protected.PUT("/notifications/preferences", notificationHandler.UpdatePreferences)
		}

		// Admin routes.
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager))
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/billboards/pending", billboardHandler.GetPendingBillboards)
			admin.POST("/billboards/:id/approve", billboardHandler.ApproveBillboard)
			admin.POST("/billboards/:id/reject", billboardHandler.RejectBillboard)

			admin.POST("/notifications/send", notificationHandler.SendNotification)
			admin.POST("/notifications/test", notificationHandler.SendTestNotification)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Endpoint not found",
			"path":  c.Request.URL.Path,
		})
	})

	return router
}
