// cmd/monitor/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"monitor-service/internal/client"
	"monitor-service/internal/config"
	"monitor-service/internal/utils"
)

var (
	configFile string
	verbose    bool
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Serial monitor client",
	Long: `Talks to a running monitor-service: lists attached ports, follows a
port's output and sends lines to it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "Service URL (default: http://127.0.0.1:8084)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log client activity to stderr")

	// flags override the config file and the environment
	_ = v.BindPFlag("client.server_url", rootCmd.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("client.request_timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(baudCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// environment is what every command needs
type environment struct {
	config *config.Config
	logger *zap.Logger
	client *client.HTTPClient
}

func newEnvironment() (*environment, error) {
	cfg, err := config.LoadWith(v, configFile)
	if err != nil {
		return nil, err
	}

	// the terminal belongs to the device output
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "console"
	if !verbose {
		cfg.Logging.Level = "warn"
	}
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &environment{
		config: cfg,
		logger: logger,
		client: client.NewHTTPClient(&cfg.Client, logger),
	}, nil
}

func (e *environment) close() {
	_ = utils.CloseLogger(e.logger)
}
