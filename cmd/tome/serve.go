package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tome server",
	Long: `Start the tome HTTP server.

The server exposes job control over HTTP. A start request runs its job to
the end before answering; shutting the server down (Ctrl+C or SIGTERM)
stops running jobs at the next unit boundary with progress saved.

With ollama.manage_container: true in the config, the server also starts a
local Ollama container and stops it on shutdown.

Routes:
  GET    /health                  Basic server health check
  GET    /ready                   Readiness (default provider health)
  GET    /api/jobs                List jobs
  POST   /api/jobs/{id}/start     Start or resume a job
  GET    /api/jobs/{id}           Job progress
  DELETE /api/jobs/{id}           Delete every record of a job
  GET    /api/jobs/{id}/logs      Job log for a day (?date=YYYY-MM-DD)
  GET    /api/jobs/{id}/calls     Recorded generation attempts
  GET    /swagger.json            OpenAPI spec

Examples:
  tome serve                    # Start on the configured address
  tome serve --port 3000        # Start on custom port
  tome serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stdout)

		h, err := getHome()
		if err != nil {
			return err
		}
		cm, err := loadConfig(h, logger)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		sc := cm.Get().Server
		host, port := sc.Host, sc.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			CORSOrigins:   sc.CORSOrigins,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
}
