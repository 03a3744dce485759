package cmd

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/utils"
)

func newMigrateCommand() *cobra.Command {
	flags := newConfigFlags()
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags[configFlag].GetString())
			if err != nil {
				return err
			}
			db, err := config.OpenDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := config.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			utils.Sugar.Infof("schema up to date on %s", cfg.DBDriver)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
