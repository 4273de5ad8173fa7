package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/swimport/internal/config"
	"github.com/conneroisu/swimport/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "dev"},
	Short:   "Start the development server",
	Long: `Start the development server.

Application entry points are bundled in memory and served under /assets/.
Workers imported with "?service-worker" are bundled on request under the
mount point. Editing a served worker, or any file it imports, reloads every
connected page.

Examples:
  swimport serve
  swimport serve --port 8080 --entry src/app.ts
  swimport serve --allowed-header ""`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to serve on")
	serveCmd.Flags().String("host", config.DefaultHost, "Host to bind to")
	bindFlag(serveCmd.Flags(), "server.port", "port")
	bindFlag(serveCmd.Flags(), "server.host", "host")

	addWorkerFlags(serveCmd)
	addProjectFlags(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	return srv.Start(ctx)
}
