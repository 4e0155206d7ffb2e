package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bridgekit/llm-bridge/internal/bootstrap"
	"github.com/bridgekit/llm-bridge/internal/logging"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the llm-bridge gateway.

Loads the configuration, wires credentials, catalog and routing, and
serves the dialect endpoints until interrupted.`,
	RunE: func(c *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			if home, err := os.UserHomeDir(); err == nil {
				configPath = home + "/.config/llm-bridge/config.yaml"
			}
		}

		app, err := bootstrap.Load(configPath)
		if err != nil {
			return err
		}
		if servePort != 0 {
			app.Config.Port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.Run(ctx); err != nil {
			logging.Errorf("server exited: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override the configured port")
	rootCmd.AddCommand(serveCmd)
}
