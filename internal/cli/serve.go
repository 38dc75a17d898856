package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve mirrored and local pages over HTTP",
	Long: `Serve starts the HTTP server: page views, remote history links, search,
the fork workflow, /health and /metrics.

Example:
  wikimirror serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	m, err := a.mirror()
	if err != nil {
		return err
	}
	forks, err := a.forks()
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Config: cfg,
		Mirror: m,
		Local:  a.local,
		Forks:  forks,
		Search: a.searcher(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.Start(ctx, cfg.Server.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	logger := log.WithComponent("cli")
	logger.Info().Msg("server stopped")
	return err
}
