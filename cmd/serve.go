package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/logs"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/storage"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/web"
)

var (
	servePort  int
	serveToken string
	serveDB    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve archived run reports over HTTP",
	Long: `Starts a read-only HTTP API over the run archive, for dashboards and
CI artifact collection.

Endpoints:
  GET /healthz           - health check (no auth)
  GET /api/runs?limit=N  - run summaries, newest first
  GET /api/runs/:id      - one full report

Requests carry "Authorization: Bearer <token>" when a token is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logs.Setup(debug)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		config := storage.DefaultArchiveConfig()
		if serveDB != "" {
			config.DBPath = serveDB
		}
		store, err := storage.NewStore(config)
		if err != nil {
			return err
		}
		defer store.Close()

		token := serveToken
		if token == "" {
			token = os.Getenv("HPA_VERIFY_TOKEN")
		}

		server := web.NewServer(store, &web.ServerConfig{
			Port:  servePort,
			Token: token,
			Debug: debug,
		})
		return server.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 8787,
		"port for the report server")
	serveCmd.Flags().StringVar(&serveToken, "token", "",
		"bearer token for the API (default: $HPA_VERIFY_TOKEN; empty leaves it open)")
	serveCmd.Flags().StringVar(&serveDB, "db", "",
		"path to the run archive (default: ~/.hpa-verify/runs.db)")
}
