package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
	"github.com/nhle/garden-reminders/internal/store/mongostore"
)

// stores bundles the repositories selected by store.driver. Tasks and
// user preferences always live in SQLite; notifications and verification
// records follow the driver.
type stores struct {
	notifications store.NotificationRepository
	verifications store.VerificationRepository
	tasks         *store.SQLiteStore
	closers       []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *model.AppConfig, logger zerolog.Logger) (*stores, error) {
	db, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	s := &stores{
		notifications: db,
		verifications: db,
		tasks:         db,
		closers:       []func() error{db.Close},
	}

	switch cfg.Store.Driver {
	case "", "sqlite":
		logger.Info().Str("path", cfg.Store.SQLitePath).Msg("using sqlite store")
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
		defer cancel()
		m, err := mongostore.Connect(connectCtx, logger, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.notifications = m
		s.verifications = m
		s.closers = append(s.closers, func() error { return m.Close(context.Background()) })
		logger.Info().Str("database", cfg.Store.MongoDatabase).Msg("using mongo store for notifications")
	default:
		s.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	return s, nil
}
