package app

import (
	"relay/config"
	"relay/internal/database"
	"relay/internal/distancematrix"
	"relay/internal/handlers/middleware"
	"relay/internal/logger"
	"relay/internal/psa"
	"relay/internal/repositories"
	"relay/internal/services"
	"relay/internal/websockets"

	travelController "relay/internal/controllers/travel"
)

type App struct {
	Database   database.DB
	Middleware middleware.Middleware
	Websocket  *websockets.Manager
	Config     config.Config

	// Services
	TransactionService *services.TransactionService
	MatchService       *services.MatchService

	// Repositories
	DistanceRepo   repositories.DistanceRepository
	AccountRepo    repositories.AccountRepository
	SubmissionRepo repositories.SubmissionRepository

	// Clients
	PSAClient    *psa.Client
	MatrixClient *distancematrix.Client

	// Controllers
	TravelController *travelController.TravelController
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.InitConfig()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	// Initialize services
	transactionService := services.NewTransactionService(db)
	matchService := services.NewMatchService()

	// Initialize repositories
	distanceRepo := repositories.NewDistance(db)
	accountRepo := repositories.NewAccount(db)
	submissionRepo := repositories.NewSubmission(db)

	// Initialize external clients
	psaClient := psa.NewClient(config)
	matrixClient := distancematrix.NewClient(config)

	websocket, err := websockets.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	middleware := middleware.New(db, config)

	travelController := travelController.New(
		psaClient,
		distanceRepo,
		accountRepo,
		submissionRepo,
		matchService,
		matrixClient,
		transactionService,
		websocket,
		config,
	)

	app := &App{
		Database:           db,
		Config:             config,
		Middleware:         middleware,
		Websocket:          websocket,
		TransactionService: transactionService,
		MatchService:       matchService,
		DistanceRepo:       distanceRepo,
		AccountRepo:        accountRepo,
		SubmissionRepo:     submissionRepo,
		PSAClient:          psaClient,
		MatrixClient:       matrixClient,
		TravelController:   travelController,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.TransactionService,
		a.MatchService,
		a.DistanceRepo,
		a.AccountRepo,
		a.SubmissionRepo,
		a.PSAClient,
		a.MatrixClient,
		a.TravelController,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *App) Close() error {
	return a.Database.Close()
}
