package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/client"
	"github.com/spec-kit/clinic-portal/internal/config"
	"github.com/spec-kit/clinic-portal/internal/observability"
	"github.com/spec-kit/clinic-portal/internal/persistence"
	"github.com/spec-kit/clinic-portal/internal/rbac"
	"github.com/spec-kit/clinic-portal/internal/session"
	"github.com/spec-kit/clinic-portal/internal/storage"
)

// portal is everything a subcommand needs, built once per invocation.
type portal struct {
	cfg        *config.Config
	logger     *zap.Logger
	api        *client.Client
	session    *session.Context
	resetEmail *session.ResetEmailStore
	gate       *rbac.Gate
	closers    []func()
}

func (p *portal) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

type rootFlags struct {
	apiURL      string
	driver      string
	storagePath string
	logLevel    string
}

// BuildRootCmd assembles the clinicctl command tree.
func BuildRootCmd() *cobra.Command {
	var (
		flags rootFlags
		p     = &portal{}
	)

	cmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Sign in to the clinic portal and check role access",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return p.init(cmd.Context(), flags)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			p.close()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "auth API base URL (default $PORTAL_API_URL)")
	cmd.PersistentFlags().StringVar(&flags.driver, "storage", "", "credential storage driver: file, redis or memory")
	cmd.PersistentFlags().StringVar(&flags.storagePath, "storage-path", "", "credential file for the file driver")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (default $LOG_LEVEL)")

	cmd.AddCommand(
		newLoginCmd(p),
		newLogoutCmd(p),
		newWhoamiCmd(p),
		newMeCmd(p),
		newRefreshCmd(p),
		newOpenCmd(p),
		newLandingCmd(p),
		newForgotPasswordCmd(p),
		newResetPasswordCmd(p),
		newRegisterCmd(p),
	)
	return cmd
}

func (p *portal) init(ctx context.Context, flags rootFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.apiURL != "" {
		cfg.Portal.APIBaseURL = flags.apiURL
	}
	if flags.driver != "" {
		cfg.Portal.StorageDriver = flags.driver
	}
	if flags.storagePath != "" {
		cfg.Portal.StoragePath = flags.storagePath
	}
	if flags.logLevel != "" {
		cfg.Logger.Level = flags.logLevel
	}
	p.cfg = cfg

	logger, err := observability.NewLogger(cfg.Logger, "stderr")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	p.logger = logger
	p.closers = append(p.closers, func() { _ = logger.Sync() })

	var redisClient *redis.Client
	if cfg.Portal.StorageDriver == storage.DriverRedis {
		r := persistence.NewRedis(ctx, cfg.Redis, logger)
		redisClient = r.Client
		p.closers = append(p.closers, r.Close)
	}
	backend, err := storage.Open(storage.Options{
		Driver:    cfg.Portal.StorageDriver,
		Path:      cfg.Portal.StoragePath,
		KeyPrefix: cfg.Portal.StorageKeyPrefix,
		Redis:     redisClient,
	})
	if err != nil {
		return err
	}

	p.api = client.New(cfg.Portal.APIBaseURL, cfg.Portal.RequestTimeout(), logger)
	p.gate = rbac.NewGate(cfg.Portal.Paths())
	p.resetEmail = session.NewResetEmailStore(backend, logger, nil)

	p.session, err = session.NewContext(session.Options{
		Store:            session.NewTokenStore(backend, logger),
		Validator:        session.NewValidator(session.WithLeeway(cfg.Portal.ClockLeeway()), session.WithValidatorLogger(logger)),
		Resolver:         session.NewResolver(p.api, logger),
		API:              p.api,
		Logger:           logger,
		RefreshOnRestore: cfg.Portal.RefreshOnRestore,
	})
	if err != nil {
		return err
	}
	p.session.Restore(ctx)
	return nil
}
