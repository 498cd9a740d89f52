package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayushsharma82/sternetd/internal/api"
	"github.com/ayushsharma82/sternetd/internal/config"
	"github.com/ayushsharma82/sternetd/internal/db"
	"github.com/ayushsharma82/sternetd/internal/eventbus"
	"github.com/ayushsharma82/sternetd/internal/fleet"
	"github.com/ayushsharma82/sternetd/internal/homekit"
	"github.com/ayushsharma82/sternetd/internal/ledger"
	"github.com/ayushsharma82/sternetd/internal/script"
	"github.com/ayushsharma82/sternetd/internal/state"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Store  *state.Store
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Device fleet
	Fleet *fleet.Manager

	// Surfaces
	HomeKit *homekit.Bridge
	API     *api.Server
	Script  *script.Runtime
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Store = state.NewStore(database.DB)
	s.Ledger = ledger.New(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	s.Fleet, err = fleet.NewManager(cfg, s.Store, s.Bus, s.Ledger)
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.HomeKit.Enabled {
		s.HomeKit, err = homekit.NewBridge(cfg.HomeKit, s.Fleet)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	if cfg.API.Enabled {
		s.API = api.NewServer(cfg.API.Host, cfg.API.Port, cfg.API.RateLimitRPS, s.Fleet, s.Ledger)
	}

	if cfg.Script != "" {
		s.Script = script.NewRuntime(s.Fleet)
	}

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is reserved for unrecoverable surface errors.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Load the Lua script before any events can fire, so handlers
	// registered at load time never miss the first link transitions.
	if s.Script != nil {
		if err := s.Script.LoadScript(s.cfg.Script); err != nil {
			return err
		}
		s.Script.RegisterHandlers(ctx, s.Bus)
		go s.Script.Run(ctx)
	}

	if s.HomeKit != nil {
		go func() {
			if err := s.HomeKit.Run(ctx); err != nil {
				onFatalError(err)
			}
		}()
	}

	if s.API != nil {
		go func() {
			if err := s.API.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
				log.Error().Err(err).Msg("API server error")
			}
		}()
	}

	go s.ledgerCleanupLoop(ctx)

	s.Fleet.Start()

	return nil
}

// ledgerCleanupLoop periodically prunes old ledger entries.
func (s *Services) ledgerCleanupLoop(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	if interval <= 0 || retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Pruned old ledger entries")
			}
		}
	}
}

// ClearState clears all persisted desired state.
func (s *Services) ClearState() error {
	return s.Store.Clear(fleet.KindDownlighter)
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Fleet != nil {
		s.Fleet.Shutdown()
	}
	if s.Script != nil {
		s.Script.Close()
	}
	if s.Bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(shutdownCtx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
