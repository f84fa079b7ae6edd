package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goappconfig/internal/devserver"
)

var (
	serveAddr     string
	serveSnapshot string
	serveAdminKey string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local stub configuration service",
	Long: `Run a local stub of the configuration service. It serves a snapshot
file over the same pull and push protocol the SDK speaks, and rebroadcasts
an invalidation event whenever the document is replaced via PUT /admin/config.

Settings come from flags, APPCONFIG_* environment variables, or an
optional .env file.

Examples:
  appconfig serve --addr :8090 --snapshot appconfig.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := devserver.LoadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		if serveSnapshot != "" {
			cfg.SnapshotPath = serveSnapshot
		}
		if serveAdminKey != "" {
			cfg.AdminAPIKey = serveAdminKey
		}

		log := logger()
		srv, err := devserver.New(cfg, afero.NewOsFs(), log)
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.Addr).Msg("stub configuration service listening")
			errCh <- httpSrv.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve: %w", err)
		case <-stop:
			log.Info().Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(ctx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Bind address (default from APPCONFIG_ADDR)")
	serveCmd.Flags().StringVar(&serveSnapshot, "snapshot", "", "Snapshot file to serve")
	serveCmd.Flags().StringVar(&serveAdminKey, "admin-key", "", "Bearer token for the admin endpoint")
}
