// Package commands implements the noema CLI subcommands.
package commands

import (
	"context"
	"database/sql"

	"github.com/noemakb/noema/config"
	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/logger"
	"github.com/noemakb/noema/ontology"
	"github.com/noemakb/noema/storage"
	"github.com/noemakb/noema/validation"

	noemadb "github.com/noemakb/noema/db"
)

// runtime bundles the shared state every command needs: configuration,
// an open migrated database, the durable store, the registry, and the
// mirror rebuilt from the durable state.
type runtime struct {
	cfg       *config.Config
	db        *sql.DB
	store     *storage.SQLStore
	mirror    *storage.Mirror
	registry  *ontology.Registry
	validator *validation.Validator
	watcher   *config.Watcher
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	database, err := noemadb.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := noemadb.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	store := storage.NewSQLStore(database, logger.Logger)

	defs, err := store.LoadRelationshipTypes(ctx)
	if err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to load relationship types")
	}
	registry := ontology.NewRegistry(defs)

	snapshot, err := store.LoadAll(ctx)
	if err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to load knowledge graph")
	}
	mirror := storage.NewMirror()
	mirror.Rebuild(snapshot)

	validator := validation.NewValidator(
		validation.NewEngine(logger.Logger),
		cfg.Validation.Threshold,
		logger.Logger,
	)

	rt := &runtime{
		cfg:       cfg,
		db:        database,
		store:     store,
		mirror:    mirror,
		registry:  registry,
		validator: validator,
	}
	rt.watchConfig()
	return rt, nil
}

// watchConfig attaches the live-reload watcher to the project config file,
// if one exists. Threshold changes take effect without restarting.
func (r *runtime) watchConfig() {
	path := config.ProjectConfigPath()
	if path == "" {
		return
	}
	watcher, err := config.NewWatcher(path)
	if err != nil {
		logger.Warnw("Config watcher unavailable", "path", path, "error", err)
		return
	}
	watcher.OnReload(func(newCfg *config.Config) error {
		r.validator.SetThreshold(newCfg.Validation.Threshold)
		r.cfg.Validation.Threshold = newCfg.Validation.Threshold
		r.cfg.Dedupe.Threshold = newCfg.Dedupe.Threshold
		return nil
	})
	watcher.Start()
	r.watcher = watcher
}

func (r *runtime) Close() {
	if r.watcher != nil {
		r.watcher.Stop()
	}
	r.db.Close()
}
