package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sharath018/ev-charging-backend/config"
	"github.com/sharath018/ev-charging-backend/database"
	"github.com/sharath018/ev-charging-backend/internal/auditlog"
	"github.com/sharath018/ev-charging-backend/internal/auth"
	"github.com/sharath018/ev-charging-backend/internal/booking"
	"github.com/sharath018/ev-charging-backend/internal/notification"
	"github.com/sharath018/ev-charging-backend/internal/station"
	"github.com/sharath018/ev-charging-backend/internal/vehicle"
	"github.com/sharath018/ev-charging-backend/routes"
	"github.com/sharath018/ev-charging-backend/utils"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg)

	// Init Redis
	if err := utils.InitRedis(); err != nil {
		log.Printf("⚠️ Redis init failed, availability cache disabled: %v", err)
	}

	// Init Kafka
	utils.InitializeKafka()

	// Auto-migrate models
	log.Println("🔄 Running database migrations...")
	if err := db.AutoMigrate(
		&auth.UserRole{},
		&auth.User{},
		&auditlog.AuditLog{},
		&station.Station{},
		&vehicle.Vehicle{},
		&booking.Booking{},
		&notification.InAppNotification{},
	); err != nil {
		log.Fatalf("❌ DB AutoMigrate failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// Seed roles & super admin
	if err := auth.SeedUserRoles(db); err != nil {
		log.Fatalf("❌ Failed to seed roles: %v", err)
	}
	if err := auth.SeedSuperAdminUser(db); err != nil {
		log.Fatalf("❌ Failed to seed Super Admin: %v", err)
	}

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:4173", "http://127.0.0.1:4173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Content-Length", "X-Requested-With", "Cache-Control", "Pragma"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition", "Cache-Control", "Pragma", "Expires"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	bookingSvc := routes.Setup(router, cfg)

	// Background workers: expiry/promotion sweeper and the notification
	// consumer feeding off booking events.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := booking.NewSweeper(bookingSvc, time.Duration(cfg.SweepIntervalSecs)*time.Second)
	go sweeper.Start(ctx)

	notificationSvc := notification.NewService(
		notification.NewRepository(db),
		auth.NewRepository(db),
		station.NewRepository(db),
	)
	go notification.StartKafkaConsumer(ctx, notificationSvc)

	fmt.Printf("🚀 Server starting on port %s\n", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
