package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Removes the build directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		d, err := driver.New(driver.Options{
			SourceDir: root,
			BuildDir:  cfg.BuildDir,
		})
		if err != nil {
			return err
		}

		dir := d.BuildDir()
		logger := newLogger(cfg)

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		if dryRun {
			logger.Info().Str("path", dir).Msgf("Would delete %s", dir)
			return nil
		}

		err = os.RemoveAll(dir)
		if err != nil && !eris.Is(err, os.ErrNotExist) {
			return eris.Wrapf(err, "Could not delete %s", dir)
		}

		logger.Info().Str("path", dir).Msgf("Deleted %s", dir)
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolP("dry", "n", false, "only print the directory that would be deleted")

	rootCmd.AddCommand(cleanCmd)
}
