package middleware

import (
	"reasondesk/config"
	"reasondesk/internal/database"
	"reasondesk/internal/events"
	"reasondesk/internal/logger"
	"reasondesk/internal/repositories"
)

type Middleware struct {
	DB       database.DB
	EventBus *events.EventBus
	Config   config.Config
	userRepo repositories.UserRepository
	counter  windowCounter
	log      logger.Logger
}

func New(
	db database.DB,
	eventBus *events.EventBus,
	config config.Config,
	userRepo repositories.UserRepository,
) Middleware {
	var counter windowCounter
	if db.Cache.RateLimit != nil {
		counter = valkeyCounter{client: db.Cache.RateLimit}
	}

	return Middleware{
		DB:       db,
		EventBus: eventBus,
		Config:   config,
		userRepo: userRepo,
		counter:  counter,
		log:      logger.New("middleware"),
	}
}
