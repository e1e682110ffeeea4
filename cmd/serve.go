package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hpkotak/aiplatform/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the platform over HTTP",
	Long: `Serve the configured provider over HTTP:
  GET  /health      liveness and provider name
  GET  /v1/models   catalog with capabilities
  POST /v1/invoke   invoke a model (text, tool calls, structured, SSE stream)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()

	port := cfg.Server.Port
	if portFlag != 0 {
		port = portFlag
	}
	srv, err := server.New(s.platform, port, s.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
