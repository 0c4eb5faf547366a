package main

import (
	"github.com/spf13/cobra"

	"github.com/cognicore/protectag/internal/logger"
	"github.com/cognicore/protectag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, err := newEngine(ctx, cfg, logger.Logger)
		if err != nil {
			return err
		}
		defer engine.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return server.New(engine, logger.Named("http")).Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
