package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/terraconstructs/idmgr/internal/config"
	"github.com/terraconstructs/idmgr/internal/services/identity"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load users and roles into the sql store",
	Long: `Loads users and roles from a YAML or JSON document (--file), or the demo
data set when no file is given. Entries whose username or role name already
exists are skipped, so seeding can be repeated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store != config.StoreSQL {
			return fmt.Errorf("seed writes to the sql store; run with --store %s", config.StoreSQL)
		}

		raw := identity.DemoSeed()
		if seedFile != "" {
			var err error
			raw, err = readSeedFile(seedFile)
			if err != nil {
				return err
			}
		}
		data, err := identity.DecodeSeed(raw)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := identity.Seed(ctx, store.users, store.roles, data, cfg.Identity.PasswordCost, logger)
		if err != nil {
			return err
		}
		logger.Info("seeded identity store", zap.Int("roles", stats.Roles), zap.Int("users", stats.Users))
		return nil
	},
}

// readSeedFile parses a seed document. The format follows the file extension.
func readSeedFile(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return v.AllSettings(), nil
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Seed document (YAML or JSON); defaults to the demo data set")
	rootCmd.AddCommand(seedCmd)
}
