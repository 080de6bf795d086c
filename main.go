package main

import (
	"context"

	api "finsight-backend/cmd/api"
	authdomain "finsight-backend/internal/auth/domain"
	authRepo "finsight-backend/internal/auth/repository"
	authUsecase "finsight-backend/internal/auth/usecase"
	txdomain "finsight-backend/internal/transaction/domain"
	txDelivery "finsight-backend/internal/transaction/delivery"
	txRepo "finsight-backend/internal/transaction/repository"
	"finsight-backend/internal/transaction/scheduler"
	txUsecase "finsight-backend/internal/transaction/usecase"
	"finsight-backend/pkg/ai"
	"finsight-backend/pkg/config"
	"finsight-backend/pkg/database"
	"finsight-backend/pkg/gemini"
	"finsight-backend/pkg/gmail"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.RefreshToken{}, &txdomain.MailCredential{}, &txdomain.EmailTransaction{}); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	credentialRepository := txRepo.NewCredentialRepository(db)
	transactionRepository := txRepo.NewTransactionRepository(db)

	// Initialize mail provider client
	mailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// Classification service is optional; without a key the classifier runs
	// on patterns alone.
	var aiClient ai.Classifier
	if cfg.GeminiAPIKey != "" {
		aiClient = gemini.NewGeminiService(cfg.GeminiAPIURL, cfg.GeminiAPIKey, cfg.HTTPTimeout)
		log.Info("Classification service enabled")
	} else {
		log.Warn("GEMINI_API_KEY not set, classification fallback disabled")
	}

	// Initialize sync pipeline
	gate := txUsecase.NewDomainGate(cfg.BankDomains)
	classifier := txUsecase.NewClassifier(gate, aiClient)
	syncEngine := txUsecase.NewSyncEngine(credentialRepository, transactionRepository, classifier, mailService, cfg.BankDomains, cfg.SyncWindow)
	orchestrator := txUsecase.NewOrchestrator(credentialRepository, userRepository, syncEngine)

	// Initialize use cases and handlers
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepository, cfg)
	mailSyncHandler := txDelivery.NewMailSyncHandler(orchestrator, credentialRepository, transactionRepository, mailService)
	handler := api.NewHandler(authUsecaseInstance, mailSyncHandler, cfg)

	// One sweep at startup for users who were logged in when the process
	// went down, then the periodic sweep takes over.
	go orchestrator.SweepAll(context.Background())

	syncScheduler := scheduler.NewSyncScheduler(orchestrator, cfg.SyncInterval)
	syncScheduler.Start()

	log.WithField("port", cfg.Port).Info("Server starting")
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
