package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/systmms/keygate/internal/api"
	"github.com/systmms/keygate/internal/config"
	"github.com/systmms/keygate/internal/manager"
	"github.com/systmms/keygate/internal/metrics"
	"github.com/systmms/keygate/internal/scheduler"
)

// NewServeCommand runs the HTTP service with the rotation scheduler.
func NewServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the credential lifecycle service",
		Long: `Run the keygate HTTP service and the rotation scheduler.

In durable mode every tracked application's rotation schedule is re-armed at
startup from the stored rotation periods.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	ctx := context.Background()
	def := cfg.Definition
	logger := cfg.Logger

	mgr, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}

	sched := scheduler.New(mgr.RotateScheduled, clockwork.NewRealClock(), logger)
	defer sched.Stop()
	mgr.SetScheduler(sched)

	if def.Mode == config.ModeDurable {
		rearmSchedules(ctx, cfg, mgr, sched)
	}

	metricsServer := metrics.NewServer(metrics.ServerConfig{
		Enabled: def.Metrics.Enabled,
		Port:    def.Metrics.Port,
		Path:    def.Metrics.Path,
	}, logger)
	if err := metricsServer.Start(); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:         def.Listen,
		Handler:      api.NewServer(mgr, def, logger).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s (%s mode)", def.Listen, def.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("received %s, shutting down", sig)
	}

	grace := time.Duration(def.ShutdownGraceMs) * time.Millisecond
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	_ = metricsServer.Stop(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}

// rearmSchedules restores rotation timers for every application already in
// the durable store. Failures are logged; the service still comes up.
func rearmSchedules(ctx context.Context, cfg *config.Config, mgr *manager.Manager, sched *scheduler.Scheduler) {
	creds, err := mgr.List(ctx)
	if err != nil {
		cfg.Logger.Error("failed to restore rotation schedules: %v", err)
		return
	}

	for _, cred := range creds {
		sched.Schedule(cred.AppName, cred.RotationPeriodDays)
	}
	cfg.Logger.Info("restored rotation schedules for %d app(s)", len(creds))
}
