// Package cli implements the faceverify command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-faceverify/internal/config"
	"github.com/teslashibe/go-faceverify/internal/log"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:          "faceverify",
		Short:        "Face verification gate: age/gender estimation and anti-spoof checks",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(g.configPath, g.envFile)
			if err != nil {
				return err
			}
			if g.logLevel != "" {
				cfg.LogLevel = g.logLevel
			}
			log.Init(cfg.LogLevel)
			g.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML config file (optional)")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file (ignored when missing)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(g),
		checkCmd(g),
		verifyCmd(g),
	)
	return cmd
}
