// Command payables-server serves the accounts payable HTTP API and a gRPC
// health endpoint backed by the storage probe.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/payables/internal/auth"
	"github.com/and161185/payables/internal/config"
	"github.com/and161185/payables/internal/importer"
	"github.com/and161185/payables/internal/migrate"
	"github.com/and161185/payables/internal/principal"
	"github.com/and161185/payables/internal/repository"
	"github.com/and161185/payables/internal/repository/postgres"
	"github.com/and161185/payables/internal/repository/sqlite"
	grpcserver "github.com/and161185/payables/internal/server/grpc"
	httpserver "github.com/and161185/payables/internal/server/http"
	"github.com/and161185/payables/internal/service"
	"github.com/and161185/payables/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("httpAddr", cfg.HTTPAddr),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// backend is the storage selected by configuration.
type backend struct {
	accounts   repository.AccountRepository
	principals repository.PrincipalRepository // nil unless the postgres store is used
	ping       grpcserver.Pinger
	close      func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Storage.DSN, cfg.Storage.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrate.Up(ctx, config.DriverPostgres, cfg.Storage.DSN); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		b := &backend{accounts: postgres.NewAccountRepo(db), ping: db.Pool.Ping, close: db.Close}
		if cfg.Auth.PrincipalStore == config.StorePostgres {
			b.principals = postgres.NewPrincipalRepo(db)
		}
		return b, nil
	default:
		db, err := sqlite.Open(ctx, cfg.Storage.DSN, cfg.Storage.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := migrate.Run(ctx, db, config.DriverSQLite); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		return &backend{
			accounts: sqlite.NewAccountRepo(db),
			ping:     db.PingContext,
			close:    func() { _ = db.Close() },
		}, nil
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	var lookup principal.Lookup = principal.NewStatic()
	if be.principals != nil {
		lookup = be.principals
		if cfg.Auth.BootstrapUser != "" {
			err := service.ProvisionPrincipal(ctx, be.principals, cfg.Auth.CredentialPolicy,
				cfg.Auth.BootstrapUser, cfg.Auth.BootstrapPassword, nil)
			if err != nil {
				return fmt.Errorf("provision %s: %w", cfg.Auth.BootstrapUser, err)
			}
			logger.Info("principal provisioned", zap.String("username", cfg.Auth.BootstrapUser))
		}
	}

	policy, err := auth.NewCredentialPolicy(cfg.Auth.CredentialPolicy)
	if err != nil {
		return err
	}
	codec := token.NewCodec([]byte(cfg.Auth.Secret), cfg.Auth.TTL())

	authSvc := service.NewAuthService(lookup, policy, codec, logger.Named("auth"))
	accounts := service.NewAccountService(be.accounts, logger.Named("accounts"))

	var objects httpserver.ObjectOpener
	if cfg.S3.Enabled() {
		client, err := importer.NewS3Client(ctx, importer.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		objects = importer.NewS3Opener(client, cfg.S3.Bucket)
	}

	gate := auth.NewGate(codec, lookup, logger.Named("gate"))
	handlers := httpserver.NewHandlers(authSvc, accounts, objects, logger.Named("http"))
	router := httpserver.NewRouter(handlers, gate, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.New(cfg.HTTPAddr, router, logger).Run(gctx) })
	if cfg.HealthAddr != "" {
		g.Go(func() error {
			return grpcserver.NewHealth(cfg.HealthAddr, be.ping, 0, logger.Named("health")).Run(gctx)
		})
	}
	return g.Wait()
}
