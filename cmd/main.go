package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukydev/maintenance-tracker/internal/config"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
	"github.com/ukydev/maintenance-tracker/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

var (
	// Global flags
	storeOverride string
	cfg           config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("maintd failed")
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "maintd",
		Short: "Equipment maintenance tracker",
		Long: `maintd serves the maintenance API: equipment, maintenance teams,
work orders with their Kanban and calendar views, and reports.

Run without a subcommand to start the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if storeOverride != "" {
				loaded.Store = storeOverride
			}
			if err := loaded.ConfigureLogging(); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&storeOverride, "store", "", "storage backend (mongo or memory); overrides STORE")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the overdue sweep",
		RunE:  runServe,
	}

	checkOverdueCmd := &cobra.Command{
		Use:   "check-overdue",
		Short: "Recompute overdue flags on open work orders once",
		RunE:  runCheckOverdue,
	}

	ensureIndexesCmd := &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the database indexes",
		RunE:  runEnsureIndexes,
	}

	createAdminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Example: `  maintd create-admin --name "Site Admin" --email admin@example.com --password 'S3cure#Pass'`,
		RunE: runCreateAdmin,
	}
	createAdminCmd.Flags().String("name", "Administrator", "display name")
	createAdminCmd.Flags().String("email", "", "login email")
	createAdminCmd.Flags().String("password", "", "password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	root.AddCommand(serveCmd, checkOverdueCmd, ensureIndexesCmd, createAdminCmd)
	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	flush, err := initSentry(cfg)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.EnsureIndexes(ctx, models.Indexes()); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	runner := scheduler.NewRunner(scheduler.OverdueSweep{Checker: a.maintenance, Spec: cfg.OverdueSchedule})
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": srv.Addr, "store": cfg.Store}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCheckOverdue(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.maintenance.CheckAllOverdue(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d overdue requests updated\n", n)
	return nil
}

func runEnsureIndexes(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	specs := models.Indexes()
	if err := a.store.EnsureIndexes(cmd.Context(), specs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d indexes ensured\n", len(specs))
	return nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.CreateAdmin(cmd.Context(), orm.Values{"name": name, "email": email, "password": password})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (%s)\n", user.Email(), user.ID())
	return nil
}

func initSentry(cfg config.Config) (func(), error) {
	if cfg.SentryDSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, AttachStacktrace: true}); err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	log.Info("Sentry error reporting enabled")
	return func() { sentry.Flush(2 * time.Second) }, nil
}
