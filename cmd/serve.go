package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/api"
	"github.com/sells-group/navaids/internal/monitoring"
	"github.com/sells-group/navaids/internal/refresh"
)

var (
	servePort       int
	serveNoSchedule bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the query API and refresh scheduler",
	Long:  "Serves proximity and polygon queries over the stored aids and refreshes them on the configured interval.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		st, err := openStore(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		metrics := monitoring.NewMetrics()
		clock := clockwork.NewRealClock()
		health := monitoring.NewCollector(st, clock, 2*cfg.Refresh.Interval)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(st, health, metrics).Routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		var wg sync.WaitGroup
		if !serveNoSchedule {
			coord := newCoordinator(st, metrics, nil, "")
			sched := refresh.NewScheduler(coord, clock, cfg.Refresh.Interval, metrics)
			wg.Add(1)
			go func() {
				defer wg.Done()
				sched.Start(ctx)
			}()
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("schedule", !serveNoSchedule),
			zap.Duration("interval", cfg.Refresh.Interval),
		)
		err = srv.ListenAndServe()
		stop()
		wg.Wait()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "serve queries without running scheduled refreshes")
	rootCmd.AddCommand(serveCmd)
}
