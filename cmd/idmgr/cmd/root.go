package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/terraconstructs/idmgr/internal/config"
	"github.com/terraconstructs/idmgr/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	cfg     *config.Config
	logger  *zap.Logger
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "idmgr",
	Short: "Identity manager admin API",
	Long: `idmgr serves an administration API for users and roles. Which properties
can be edited, and how they are validated, is driven by metadata.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfigFile(); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, err = logging.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// flagBindings maps viper keys to persistent flag names.
var flagBindings = map[string]string{
	"store":                   "store",
	"database_url":            "db-url",
	"server_addr":             "server-addr",
	"debug":                   "debug",
	"security.localhost_only": "localhost-only",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ./idmgr.yaml when present)")
	pf.String("store", "", "Identity store: memory or sql (env: IDMGR_STORE)")
	pf.String("db-url", "", "Database connection URL for the sql store (env: IDMGR_DATABASE_URL)")
	pf.String("server-addr", "", "Server bind address (env: IDMGR_SERVER_ADDR)")
	pf.Bool("debug", false, "Enable debug logging (env: IDMGR_DEBUG)")
	pf.Bool("localhost-only", true, "Reject requests from non-loopback addresses (env: IDMGR_SECURITY_LOCALHOST_ONLY)")

	for key, name := range flagBindings {
		if err := viper.BindPFlag(key, pf.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// readConfigFile loads the --config file, or ./idmgr.yaml when it exists.
func readConfigFile() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("idmgr")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
