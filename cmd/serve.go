package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/KotFed0t/finance_simulator/data"
	"github.com/KotFed0t/finance_simulator/data/cache"
	"github.com/KotFed0t/finance_simulator/data/repository/postgres"
	"github.com/KotFed0t/finance_simulator/data/session"
	"github.com/KotFed0t/finance_simulator/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/finance_simulator/internal/externalApi/quoteApi"
	"github.com/KotFed0t/finance_simulator/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/finance_simulator/internal/scheduler"
	"github.com/KotFed0t/finance_simulator/internal/service/authService"
	"github.com/KotFed0t/finance_simulator/internal/service/ledgerService"
	"github.com/KotFed0t/finance_simulator/internal/tgbot"
	"github.com/KotFed0t/finance_simulator/internal/transport/telegram"
	"github.com/KotFed0t/finance_simulator/internal/transport/web"
	"github.com/google/subcommands"
)

type serveCmd struct {
	noJobs bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the web server, the telegram bot and the background jobs" }
func (*serveCmd) Usage() string {
	return `serve [-no-jobs]

  Applies pending migrations, then serves until SIGINT or SIGTERM.
  The telegram bot starts only when TELEGRAM_TOKEN is set.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noJobs, "no-jobs", false, "do not start the scheduled jobs")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	quoteApiClient := quoteApi.New(cfg)

	reportGenerator := xslsxGenerator.New()

	ledgerSrv := ledgerService.New(pgRepo, redisCache, quoteApiClient, reportGenerator)
	authSrv := authService.New(pgRepo, cfg.Ledger.StartingCash)

	googleCloudStorage := newCloudStorage(ctx, cfg)

	if !c.noJobs {
		sched, err := newScheduler(cfg, ledgerSrv, googleCloudStorage)
		if err != nil {
			slog.Error("can't create scheduler", slog.String("err", err.Error()))
			return subcommands.ExitFailure
		}
		sched.Start()
		defer sched.Stop()
	}

	webCtrl := web.NewController(cfg, ledgerSrv, authSrv, redisSession)
	webServer := web.New(cfg, webCtrl)
	webServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		webServer.Stop(shutdownCtx)
	}()

	if cfg.Telegram.Token != "" {
		var storage telegram.CloudStorage
		if googleCloudStorage != nil {
			storage = googleCloudStorage
		}
		tgController := telegram.NewController(cfg, ledgerSrv, authSrv, redisSession, storage)

		tgBot, err := tgbot.New(cfg, tgController)
		if err != nil {
			slog.Error("can't create tgbot", slog.String("err", err.Error()))
			return subcommands.ExitFailure
		}
		tgBot.Start()
		defer tgBot.Stop()
	} else {
		slog.Info("TELEGRAM_TOKEN is empty, tgbot disabled")
	}

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	return subcommands.ExitSuccess
}

// newCloudStorage returns nil when report upload is not configured.
func newCloudStorage(ctx context.Context, cfg *config.Config) *googleDriveApi.GoogleDriveApi {
	if cfg.GoogleDrive.CredentialsFile == "" {
		slog.Info("GOOGLE_DRIVE_CREDENTIALS_FILE is empty, report upload disabled")
		return nil
	}

	drive, err := googleDriveApi.New(ctx, cfg)
	if err != nil {
		slog.Error("can't init google drive, report upload disabled", slog.String("err", err.Error()))
		return nil
	}
	return drive
}

func newScheduler(cfg *config.Config, ledgerSrv *ledgerService.LedgerService, drive *googleDriveApi.GoogleDriveApi) (*scheduler.Scheduler, error) {
	sched := scheduler.New()

	if err := sched.NewIntervalJob("refresh prices", ledgerSrv.RefreshPrices, cfg.Jobs.RefreshPricesInterval, true); err != nil {
		return nil, err
	}

	audit := func(ctx context.Context) error {
		_, err := ledgerSrv.Audit(ctx)
		return err
	}
	if err := sched.NewCrontabJob("audit ledger", audit, cfg.Jobs.AuditLedgerCrontab, false); err != nil {
		return nil, err
	}

	if drive != nil {
		if err := sched.NewCrontabJob("delete old reports", drive.DeleteOldFiles, cfg.Jobs.CleanupReportsCrontab, false); err != nil {
			return nil, err
		}
	}

	return sched, nil
}
