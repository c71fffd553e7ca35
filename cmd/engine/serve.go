package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/engine"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/httpapi"
	"phdhunt-engine/internal/poll"
	"phdhunt-engine/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the daily collection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		cfg := rt.cfg
		log := slog.Default()

		// Load config and keep it reloadable
		var cfgVal atomic.Value // stores config.Config
		cfgVal.Store(cfg)
		loadCfg := func() (config.Config, error) {
			c, err := config.Load(rt.cfgPath)
			if err != nil {
				return c, err
			}
			if c.App.DataDir == "" || c.App.DataDir == "." {
				c.App.DataDir = cfg.App.DataDir
			}
			c, v := config.NormalizeAndValidate(c)
			return c, v.Err()
		}

		hub := events.NewHub()
		sink := append(events.Multi{hub}, rt.sinks...)
		eng := engine.New(rt.db, poll.EngineOptions(cfg, rt.locker, sink, log))
		runner := poll.NewRunner(eng, &cfgVal, rt.locker, sink, log)
		// runs in flight see ctx cancelled and finish as cancelled before the store closes
		defer runner.Wait()

		var nextRun func() string
		if cfg.Schedule.Enabled {
			s, err := scheduler.Daily(ctx, cfg.Schedule.TimeOfDay, cfg.Schedule.Timezone, "schedule",
				func(ctx context.Context) error {
					_, err := runner.Run(ctx, poll.Request{})
					return err
				}, log)
			if err != nil {
				return err
			}
			s.Start()
			defer s.Stop()
			nextRun = func() string { return s.Next().Format(time.RFC3339) }
			log.Info("[schedule] daily collection", "at", cfg.Schedule.TimeOfDay, "tz", cfg.Schedule.Timezone, "next", nextRun())
		}

		handler := httpapi.NewHandler(httpapi.Deps{
			Store:       rt.db,
			DB:          rt.db.Local(),
			Hub:         hub,
			CfgVal:      &cfgVal,
			UserCfgPath: rt.cfgPath,
			LoadCfg:     loadCfg,
			Runner:      runner,
			BaseCtx:     ctx,
			NextRun:     nextRun,
			Logger:      log,
		})

		addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		log.Info("engine listening", "addr", "http://"+addr, "store", rt.db.Driver)

		srv := &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		errc := make(chan error, 1)
		go func() { errc <- srv.Serve(ln) }()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
