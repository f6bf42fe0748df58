package admission

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/medrex/slot-admission/pkg/clock"
	"github.com/medrex/slot-admission/pkg/config"
	"github.com/medrex/slot-admission/pkg/database"
	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/medrex/slot-admission/pkg/monitoring"
	"github.com/medrex/slot-admission/pkg/sealed"
	"github.com/medrex/slot-admission/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Service exposes the admission core over HTTP
type Service struct {
	config *config.Config
	logger *logger.Logger
	core   *Core
	tokens *TokenValidator
	db     *database.DB
	store  *EventStore
	server *http.Server
	health *monitoring.HealthHandler
}

// New wires the admission service: sealed-value provider, registry with the
// configured admin, window policy, notifier fan-out (log, plus redis and
// postgres when enabled) and the core itself.
func New(cfg *config.Config, log *logger.Logger) (*Service, error) {
	provider := sealed.NewAESProvider(cfg.Sealing.Key)
	registry := NewAccessRegistry(types.Principal(cfg.Admin))
	policy := NewWindowPolicy(&cfg.Policy)

	notifiers := MultiNotifier{NewLogNotifier(log)}

	var db *database.DB
	var store *EventStore
	if cfg.Database.Enabled {
		conn, err := database.NewConnection(&cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := conn.EnsureSchema(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		db = conn
		store = NewEventStore(conn, log)
		notifiers = append(notifiers, store)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		notifiers = append(notifiers, NewRedisNotifier(client, cfg.Redis.Channel, log))
	}

	core := NewCore(registry, policy, provider, clock.System{}, notifiers, log)

	health := monitoring.NewHealthHandler("admission-service")
	if db != nil {
		health.Register("database", db.Health)
	}

	return &Service{
		config: cfg,
		logger: log,
		core:   core,
		tokens: NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer),
		db:     db,
		store:  store,
		health: health,
	}, nil
}

// Core returns the admission core, for tests and embedding
func (s *Service) Core() *Core {
	return s.core
}

// Start starts the admission service HTTP server
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.logger.Infof("Starting Admission Service on %s", addr)
	return s.server.ListenAndServe()
}

// Stop stops the admission service
func (s *Service) Stop() error {
	if s.server != nil {
		s.logger.Info("Stopping Admission Service")
		if err := s.server.Close(); err != nil {
			return err
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
