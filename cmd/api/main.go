package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/config"
	"github.com/ovaphlow/pitchfork/service-account-admin/pkg/utilities"
)

// runtime is filled by the root command before any subcommand runs.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:          "account-admin",
		Short:        "Admin account management service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// load .env if present; real env wins
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			lg, err := utilities.Init(cfg.Log())
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			if err := utilities.SetSnowflakeNode(cfg.SnowflakeNode); err != nil {
				return fmt.Errorf("SNOWFLAKE_NODE: %w", err)
			}
			rt.cfg, rt.logger, rt.sugar = cfg, lg, lg.Sugar()
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	root.AddCommand(newServeCmd(rt), newMigrateCmd(rt), newCreateAdminCmd(rt))
	return root
}

func newServeCmd(rt *runtime) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sugar := rt.sugar
			sugar.Infow("starting service-account-admin", "addr", rt.cfg.HTTPAddr, "store", rt.cfg.StoreDriver)

			st, err := openStores(rt.cfg, sugar)
			if err != nil {
				return err
			}
			defer st.Close()

			if migrate && st.db != nil {
				if err := runMigrations(st, sugar); err != nil {
					return err
				}
			}

			handler, err := buildHandler(rt.cfg, st, sugar)
			if err != nil {
				return err
			}

			// graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:    rt.cfg.HTTPAddr,
				Handler: handler,
			}

			errCh := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			sugar.Info("service is running; press Ctrl+C to stop")

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
			}

			sugar.Info("shutting down")
			doneCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
			defer cancel()

			if err := st.ping(doneCtx); err != nil {
				sugar.Warnf("db ping on shutdown failed: %v", err)
			}
			if err := srv.Shutdown(doneCtx); err != nil {
				sugar.Warnf("http server shutdown failed: %v", err)
			}
			sugar.Info("goodbye")
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
