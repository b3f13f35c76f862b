package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/scoutgraph/internal/admin"
	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/database"
	"github.com/nao1215/scoutgraph/internal/log"
	"github.com/nao1215/scoutgraph/internal/secret"
)

// app holds what every subcommand needs: the merged configuration, a
// logger, the open database and the admin service over it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.DB
	admin  *admin.Service
	sealer *secret.Sealer
}

// loadConfig builds the process configuration from the configuration
// file and the global flags. Flags win over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicitly named file must exist; the implicit lookup may find nothing.
	path := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case path != "":
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.ApplyFile(f)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	stateDir, err := flags.GetString("state-dir")
	if err != nil {
		return nil, err
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration and opens the database. The caller
// must call Close.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		admin:  admin.NewService(db, admin.WithLogger(logger)),
	}, nil
}

// withSealer loads the installation key and attaches a sealer to the
// admin service. Only commands that touch credentials need it.
func (a *app) withSealer() error {
	if a.sealer != nil {
		return nil
	}
	pass, err := secret.LoadOrCreatePassphrase(a.cfg.KeyFile())
	if err != nil {
		return err
	}
	s, err := secret.NewSealer(pass)
	if err != nil {
		return err
	}
	a.sealer = s
	a.admin = admin.NewService(a.db, admin.WithLogger(a.logger), admin.WithSealer(s))
	return nil
}

// Close releases the database.
func (a *app) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// errNoIdentities is returned when a command needs at least one identity.
var errNoIdentities = errors.New("no usable identities (add one with \"scoutgraph identity add\")")
