package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/learnsmart/tutor/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the decision API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			rt.cfg.Server.Addr = addr
		}

		rt.logger.Info("starting tutor",
			zap.String("version", buildVersion()),
			zap.String("default_strategy", string(rt.cfg.Engine.DefaultStrategy)),
			zap.Bool("generator", rt.cfg.Generator.Enabled),
			zap.Bool("audit", rt.cfg.Store.Audit))

		return server.New(rt.engine, rt.cfg.Server, rt.cfg.RateLimit, rt.logger).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
