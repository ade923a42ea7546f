package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"pressroom/internal/config"
	"pressroom/internal/db"
	"pressroom/internal/engine"
	"pressroom/internal/identity"
	"pressroom/internal/migrate"
	"pressroom/internal/notify"
)

// App bundles the services one process works with.
type App struct {
	DB     *sql.DB
	Config *config.Config
	Log    logrus.FieldLogger
	Engine engine.Engine
	Roster identity.Roster

	dispatcher *notify.Dispatcher
}

// Open opens and migrates the database, seeds the configured roster and wires
// the notification sinks into the engine.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	conn, err := db.Open(db.Config{Workspace: cfg.Database.Workspace, Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.WithField("schema_version", version).Debug("database ready")
	roster := identity.New(conn)
	if len(cfg.Roster) > 0 {
		n, err := roster.Seed(ctx, cfg.Roster)
		if err != nil {
			conn.Close()
			return nil, err
		}
		log.WithField("entries", n).Debug("roster seeded")
	}
	e := engine.New(conn, cfg)
	e.Log = log
	sink, dispatcher := Sinks(cfg, log)
	e.Notify = sink
	return &App{DB: conn, Config: cfg, Log: log, Engine: e, Roster: roster, dispatcher: dispatcher}, nil
}

// Close flushes queued notifications before closing the database.
func (a *App) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	return a.DB.Close()
}

// Sinks builds the notification fanout described by the config. Webhooks are
// delivered through the returned dispatcher, which is nil when none is
// enabled.
func Sinks(cfg *config.Config, log logrus.FieldLogger) (notify.Sink, *notify.Dispatcher) {
	var (
		sinks      notify.Fanout
		dispatcher *notify.Dispatcher
	)
	if cfg.Notifications.Log {
		sinks = append(sinks, notify.LogSink{Log: log})
	}
	if hooks := notify.NewWebhookSink(cfg.Notifications.Webhooks); hooks != nil {
		dispatcher = notify.NewDispatcher(hooks, cfg.Notifications.QueueSize, log)
		sinks = append(sinks, dispatcher)
	}
	if len(sinks) == 0 {
		return notify.Nop{}, nil
	}
	return sinks, dispatcher
}
