package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barekit/lectern/pkg/app"
	"github.com/barekit/lectern/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	srv := server.New(a,
		server.WithMaxUploadMB(cfg.Server.MaxUploadMB),
		server.WithReadTimeout(cfg.Server.ReadTimeout),
		server.WithShutdownGrace(cfg.Server.ShutdownGrace),
	)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		rootCmd.PrintErrln("failed to close connections:", err)
	}
}
