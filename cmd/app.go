package main

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/auth"
	"github.com/ukydev/maintenance-tracker/internal/config"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/events"
	"github.com/ukydev/maintenance-tracker/internal/handlers"
	"github.com/ukydev/maintenance-tracker/internal/mailer"
	"github.com/ukydev/maintenance-tracker/internal/maintenance"
	"github.com/ukydev/maintenance-tracker/internal/middleware"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// app holds the wired services of one process.
type app struct {
	cfg         config.Config
	store       db.Store
	publisher   events.Publisher
	mailer      mailer.Mailer
	tokens      *auth.Service
	portal      *auth.Portal
	maintenance *maintenance.Service
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewService(auth.Config{Secret: cfg.JWTSecret, Expiry: cfg.JWTExpiry})
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	publisher := newPublisher(cfg)
	return &app{
		cfg:         cfg,
		store:       store,
		publisher:   publisher,
		mailer:      newMailer(cfg),
		tokens:      tokens,
		portal:      auth.NewPortal(store, tokens),
		maintenance: maintenance.NewService(store, maintenance.WithPublisher(publisher)),
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("Using in-memory store; data is lost on exit")
		return db.NewMemoryStore(), nil
	case config.StoreMongo:
		store, err := db.OpenMongoStore(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		log.WithField("database", cfg.MongoDBName).Info("Connected to MongoDB")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// newPublisher connects to the MQTT broker when one is configured. A
// broker that cannot be reached leaves events unpublished.
func newPublisher(cfg config.Config) events.Publisher {
	if cfg.MQTT.Broker == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewMQTTPublisher(events.MQTTConfig{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	})
	if err != nil {
		log.WithError(err).Warn("MQTT unavailable, lifecycle events disabled")
		return events.NopPublisher{}
	}
	return p
}

func newMailer(cfg config.Config) mailer.Mailer {
	if !cfg.SMTP.Enabled() {
		return &mailer.LogMailer{}
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

// Handler builds the HTTP surface.
func (a *app) Handler() http.Handler {
	return handlers.Router{
		Maintenance: handlers.NewMaintenanceHandler(a.maintenance, a.cfg.ItemsPerPage),
		Auth:        handlers.NewAuthHandler(a.portal, a.mailer, a.cfg.PublicURL, a.tokens.TokenExpiry()),
		Users:       handlers.NewUserHandler(a.portal, a.cfg.ItemsPerPage),
		Sessions:    middleware.NewAuthMiddleware(a.tokens, a.portal),
		RateLimiter: middleware.NewRateLimitMiddleware(),
	}.Handler()
}

// CreateAdmin adds an administrator after the same checks sign-up applies.
func (a *app) CreateAdmin(ctx context.Context, vals orm.Values) (models.PortalUser, error) {
	email, _ := vals["email"].(string)
	password, _ := vals["password"].(string)
	if err := auth.ValidateEmail(email); err != nil {
		return models.PortalUser{}, err
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return models.PortalUser{}, err
	}
	exists, err := a.portal.EmailExists(ctx, email)
	if err != nil {
		return models.PortalUser{}, err
	}
	if exists {
		return models.PortalUser{}, auth.ErrEmailTaken
	}
	vals = vals.Clone()
	vals["is_admin"] = true
	return a.portal.Create(ctx, vals)
}

// Close releases the broker connection and the store.
func (a *app) Close() {
	a.publisher.Close()
	if err := a.store.Close(context.Background()); err != nil {
		log.WithError(err).Warn("Failed to close store")
	}
}
