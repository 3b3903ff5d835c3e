package app

import (
	"reasondesk/config"
	"reasondesk/internal/ai"
	"reasondesk/internal/database"
	"reasondesk/internal/events"
	"reasondesk/internal/handlers/middleware"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/services"
	"reasondesk/internal/websockets"

	adminController "reasondesk/internal/controllers/admin"
	caseRecordController "reasondesk/internal/controllers/caseRecords"
	crudController "reasondesk/internal/controllers/crud"
	feedbackController "reasondesk/internal/controllers/feedback"
	statsController "reasondesk/internal/controllers/stats"
	tagController "reasondesk/internal/controllers/tags"
	userController "reasondesk/internal/controllers/users"
)

type App struct {
	Database   database.DB
	Middleware middleware.Middleware
	Websocket  *websockets.Manager
	EventBus   *events.EventBus
	Config     config.Config
	Provider   ai.Provider

	// Services
	TransactionService *services.TransactionService
	CacheInvalidation  *services.CacheInvalidationService

	// Repositories
	CaseRecordRepo repositories.CaseRecordRepository
	TagRepo        repositories.TagRepository
	FeedbackRepo   repositories.FeedbackRepository
	StatsRepo      repositories.StatsRepository
	UserRepo       repositories.UserRepository
	ClientRepo     repositories.CrudRepository[Client]
	ExhibitionRepo repositories.CrudRepository[Exhibition]
	MeetingRepo    repositories.CrudRepository[Meeting]

	// Controllers
	CaseRecordController *caseRecordController.CaseRecordController
	TagController        *tagController.TagController
	FeedbackController   *feedbackController.FeedbackController
	StatsController      *statsController.StatsController
	UserController       *userController.UserController
	ClientController     *crudController.ClientController
	ExhibitionController *crudController.ExhibitionController
	MeetingController    *crudController.MeetingController
	AdminController      *adminController.AdminController
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

	provider, err := ai.New(config)
	if err != nil {
		_ = db.Close()
		return &App{}, log.Err("failed to create AI provider", err, "provider", config.AIProvider)
	}

	app, err := Build(config, db, provider)
	if err != nil {
		_ = db.Close()
		return &App{}, err
	}

	return app, nil
}

// Build wires every layer on top of an open database and provider.
func Build(config config.Config, db database.DB, provider ai.Provider) (*App, error) {
	log := logger.New("app").Function("Build")

	eventBus := events.New(db.Cache.Events, config)

	// Initialize services
	transactionService := services.NewTransactionService(db)
	cacheInvalidation := services.NewCacheInvalidationService(db)

	// Initialize repositories
	caseRecordRepo := repositories.NewCaseRecord(db)
	tagRepo := repositories.NewTag(db)
	feedbackRepo := repositories.NewFeedback(db)
	statsRepo := repositories.NewStats(db)
	userRepo := repositories.NewUser(db)
	clientRepo := repositories.NewCrud[Client](db, "name ASC")
	exhibitionRepo := repositories.NewCrud[Exhibition](db, "start_date DESC")
	meetingRepo := repositories.NewCrud[Meeting](db, "start_time ASC")

	// Initialize controllers with repositories and services
	middleware := middleware.New(db, eventBus, config, userRepo)
	tagController := tagController.New(tagRepo, caseRecordRepo, provider, transactionService, eventBus)
	caseRecordController := caseRecordController.New(
		caseRecordRepo,
		tagRepo,
		tagController,
		provider,
		transactionService,
		cacheInvalidation,
		eventBus,
	)
	feedbackController := feedbackController.New(feedbackRepo, caseRecordRepo, cacheInvalidation, eventBus)
	statsController := statsController.New(statsRepo, cacheInvalidation, db, config)
	userController := userController.New(userRepo)

	websocket, err := websockets.New(db, eventBus, config)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	app := &App{
		Database:             db,
		Config:               config,
		Middleware:           middleware,
		Provider:             provider,
		TransactionService:   transactionService,
		CacheInvalidation:    cacheInvalidation,
		CaseRecordRepo:       caseRecordRepo,
		TagRepo:              tagRepo,
		FeedbackRepo:         feedbackRepo,
		StatsRepo:            statsRepo,
		UserRepo:             userRepo,
		ClientRepo:           clientRepo,
		ExhibitionRepo:       exhibitionRepo,
		MeetingRepo:          meetingRepo,
		CaseRecordController: caseRecordController,
		TagController:        tagController,
		FeedbackController:   feedbackController,
		StatsController:      statsController,
		UserController:       userController,
		ClientController:     crudController.NewClients(clientRepo),
		ExhibitionController: crudController.NewExhibitions(exhibitionRepo),
		MeetingController:    crudController.NewMeetings(meetingRepo, clientRepo, exhibitionRepo),
		AdminController:      adminController.New(eventBus, userRepo, db),
		Websocket:            websocket,
		EventBus:             eventBus,
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
		a.EventBus,
		a.Provider,
		a.TransactionService,
		a.CacheInvalidation,
		a.CaseRecordRepo,
		a.TagRepo,
		a.FeedbackRepo,
		a.StatsRepo,
		a.UserRepo,
		a.ClientRepo,
		a.ExhibitionRepo,
		a.MeetingRepo,
		a.CaseRecordController,
		a.TagController,
		a.FeedbackController,
		a.StatsController,
		a.UserController,
		a.ClientController,
		a.ExhibitionController,
		a.MeetingController,
		a.AdminController,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.Websocket != nil {
		a.Websocket.Close()
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
