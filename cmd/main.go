package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"blib/internal/handlers"
	"blib/internal/models"
	"blib/internal/repositories"
	"blib/internal/scheduler"
	"blib/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] main: no .env file loaded: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get generic DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.Book{},
		&models.Subscriber{},
		&models.BorrowRecord{},
		&models.Reservation{},
		&models.FreezeLog{},
		&models.Issue{},
		&models.Message{},
		&models.Report{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	subscriberRepo := repositories.NewSubscriberRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	borrowRepo := repositories.NewBorrowRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	freezeLogRepo := repositories.NewFreezeLogRepository(db)
	issueRepo := repositories.NewIssueRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	reportRepo := repositories.NewReportRepository(db)

	locks := services.NewLockTable()

	catalogService := services.NewCatalogService(db, bookRepo, locks)
	lendingService := services.NewLendingService(db, subscriberRepo, bookRepo, borrowRepo, reservationRepo, messageRepo, locks, nil)
	reservationService := services.NewReservationService(db, subscriberRepo, bookRepo, borrowRepo, reservationRepo, messageRepo, locks, nil)
	subscriberService := services.NewSubscriberService(db, subscriberRepo)
	accountService := services.NewAccountService(db, subscriberRepo, freezeLogRepo, messageRepo, locks, nil)
	issueService := services.NewIssueService(db, borrowRepo, bookRepo, issueRepo, locks, nil)
	notificationService := services.NewNotificationService(messageRepo, nil)
	reconciliationService := services.NewReconciliationService(
		db, subscriberRepo, bookRepo, borrowRepo, reservationRepo, messageRepo,
		freezeLogRepo, issueRepo, reportRepo, accountService, locks, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := 24 * time.Hour
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid SWEEP_INTERVAL %q: %v", raw, err)
		}
		interval = parsed
	}
	go scheduler.New(reconciliationService, interval, nil).Run(ctx)

	router := gin.Default()
	handlers.RegisterRoutes(router,
		catalogService, lendingService, reservationService,
		subscriberService, issueService, notificationService, reconciliationService)

	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = ":8080"
	}

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] main: shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on %s", serverAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
