// Package cli is the booking-dashboard command line: the portal server and a
// one-shot snapshot command for scripting.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/logistics-platform/booking-dashboard/internal/config"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
)

// NewRootCommand builds the command tree on its own viper instance
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "booking-dashboard",
		Short:         "Role dashboards over the logistics booking API",
		Long:          `booking-dashboard serves the admin, customer and dispatcher dashboards, the admin reports screen and the user directory on top of the booking API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("api-base-url", "", "booking API base URL, including the /api prefix")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("api_base_url", root.PersistentFlags().Lookup("api-base-url"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	load := func() (*config.Config, error) {
		return config.Load(v, cfgFile)
	}

	root.AddCommand(newServeCommand(v, load))
	root.AddCommand(newSnapshotCommand(v, load))
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Output = out
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	return logging.New(logConfig)
}
