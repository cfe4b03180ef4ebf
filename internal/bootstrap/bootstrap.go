package bootstrap

import (
	"go.uber.org/zap"

	coachinadapter "osl/internal/modules/coach/adapter/in"
	coachoutadapter "osl/internal/modules/coach/adapter/out"
	coachservice "osl/internal/modules/coach/service"
	coachusecase "osl/internal/modules/coach/usecase"
	governanceinadapter "osl/internal/modules/governance/adapter/in"
	governanceservice "osl/internal/modules/governance/service"
	governanceusecase "osl/internal/modules/governance/usecase"
	migrationinadapter "osl/internal/modules/migration/adapter/in"
	migrationoutadapter "osl/internal/modules/migration/adapter/out"
	migrationdomain "osl/internal/modules/migration/domain"
	migrationservice "osl/internal/modules/migration/service"
	migrationusecase "osl/internal/modules/migration/usecase"
	sessioninadapter "osl/internal/modules/session/adapter/in"
	sessionoutadapter "osl/internal/modules/session/adapter/out"
	sessionservice "osl/internal/modules/session/service"
	sessionusecase "osl/internal/modules/session/usecase"
	"osl/internal/platform/clock"
	"osl/internal/platform/config"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/id"
	"osl/internal/platform/logging"
)

type App struct {
	Config        config.Config
	Logger        *zap.Logger
	CoachCLI      coachinadapter.CLIHandler
	GovernanceCLI governanceinadapter.CLIHandler
	SessionCLI    sessioninadapter.CLIHandler
	MigrationCLI  migrationinadapter.CLIHandler

	index *sessionoutadapter.SQLiteSessionIndex
}

func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	clk := clock.SystemClock{}
	docs := docstore.New(cfg.StateDir, logger)

	registry := migrationdomain.DefaultRegistry()
	migrationSvc := migrationservice.NewMigrationService(
		clk,
		registry,
		migrationoutadapter.NewFileDocuments(),
		migrationoutadapter.NewFileLogStore(docs, registry.Current(), logger.Named("migration")),
		logger,
	)
	migrationUC := migrationusecase.NewInteractor(migrationSvc, cfg.StateDir)

	coachStore := coachoutadapter.NewFileStateStore(docs, migrationUC, logger.Named("coach"))
	coachUC := coachusecase.NewInteractor(coachservice.NewCoachService(
		clk,
		coachStore,
		coachoutadapter.NewPDFPageCounter(),
		coachoutadapter.NewDirWorkspace(cfg.StateDir, cfg.VaultDir),
		logger.Named("coach"),
	))
	governanceUC := governanceusecase.NewInteractor(governanceservice.NewGovernanceService(clk, coachStore, logger.Named("governance")))

	index, err := sessionoutadapter.OpenSQLiteSessionIndex(cfg.DBPath)
	if err != nil {
		_ = logger.Sync()
		return nil, apperrors.Wrap(err, "open session index")
	}
	sessionUC := sessionusecase.NewInteractor(
		sessionservice.NewSessionService(
			clk,
			id.UUID{},
			sessionoutadapter.NewFileSessionStore(docs, migrationUC, logger.Named("session")),
			sessionoutadapter.NewVaultNotes(cfg.VaultDir),
			index,
			logger.Named("session"),
		),
		coachUC,
		governanceUC,
	)

	return &App{
		Config:        cfg,
		Logger:        logger,
		CoachCLI:      coachinadapter.NewCLIHandler(coachUC),
		GovernanceCLI: governanceinadapter.NewCLIHandler(governanceUC),
		SessionCLI:    sessioninadapter.NewCLIHandler(sessionUC),
		MigrationCLI:  migrationinadapter.NewCLIHandler(migrationUC),
		index:         index,
	}, nil
}

// Close releases the session index and flushes the logger.
func (a *App) Close() error {
	err := a.index.Close()
	_ = a.Logger.Sync()
	return err
}
