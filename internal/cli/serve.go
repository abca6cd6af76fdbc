package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stxkxs/ttr/internal/server"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ttr upload dashboard",
	Long: `Start a web server with an upload page and a JSON API for reports.

Endpoints:
  POST   /api/reports            upload an event log (multipart "file" or text/csv body)
  GET    /api/reports            recent runs
  GET    /api/reports/{id}       one run with its report
  GET    /api/reports/{id}/csv   download (?seconds=1 adds the raw column)
  DELETE /api/reports/{id}
  GET    /api/events             server-sent report events
  GET    /metrics                Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (default from config, 8080)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (default from config, localhost)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(cfg, a.runner, a.history, a.bus, a.metrics, a.logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(cmd.OutOrStdout(), "ttr dashboard on http://%s\n", addr)
	return srv.Start(ctx, addr)
}
