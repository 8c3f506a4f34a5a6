package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nickromney-org/ota-release-selector/internal/config"
	"github.com/nickromney-org/ota-release-selector/internal/installer"
	"github.com/nickromney-org/ota-release-selector/pkg/logger"
	"github.com/nickromney-org/ota-release-selector/pkg/ota"
)

var (
	installPath string
	noBackup    bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the firmware image of the latest release",
	Long: `Check the latest release and, when it passes the filter, download its
firmware asset and replace the installed image.

With --current the latest release must be newer than the installed version.
The image is written to a temporary file and renamed into place, so an
interrupted download never leaves a partial image behind.`,
	Example: `  ota install -r acme/widget-firmware -c v1.2.0 --path /opt/widget/firmware.bin`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installPath, "path", "", "where to write the image (default firmware.bin)")
	installCmd.Flags().BoolVar(&noBackup, "no-backup", false, "do not keep the previous image as <path>.bak")
	rootCmd.AddCommand(installCmd)
}

// applyInstallFlags applies the install flags, and requires the latest
// release to be newer than the installed version when one is known
func applyInstallFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("path") {
		cfg.Install.Path = installPath
	}
	if cmd.Flags().Changed("no-backup") {
		cfg.Install.Backup = !noBackup
	}
	if cfg.CurrentVersion != "" {
		cfg.Newer = true
	}
}

func newInstallUpdater(cmd *cobra.Command) (*ota.Updater, string, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", nil, err
	}
	applyInstallFlags(cmd, cfg)

	src, origin, err := newSource(cfg)
	if err != nil {
		return nil, "", nil, err
	}

	inst := installer.NewFileInstaller(cfg.Install.Path, cfg.Install.Backup, cfg.Install.Timeout, logger.Module("installer"))
	return ota.New(src, cfg.Selection(), ota.WithInstaller(inst)), origin, cfg, nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	updater, origin, cfg, err := newInstallUpdater(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := updater.InstallLatest(cmd.Context())
	if errors.Is(err, ota.ErrSelection) {
		if cfg.CurrentVersion != "" {
			green.Fprintf(out, "✅ Version %s is up to date (%s)\n", cfg.CurrentVersion, origin)
		} else {
			yellow.Fprintf(out, "ℹ️  The latest release of %s does not carry %s\n", origin, cfg.Filename)
		}
		return nil
	}
	if err != nil {
		printFetchError(cmd.ErrOrStderr(), err)
		return err
	}

	printInstallation(out, result)
	return nil
}

func printInstallation(out io.Writer, result *ota.Installation) {
	green.Fprintf(out, "✅ Installed %s\n", result.Release.TagName)
	fmt.Fprintf(out, "   Image:   %s (%d bytes)\n", result.Result.Path, result.Result.Bytes)
	fmt.Fprintf(out, "   SHA-256: %s\n", result.Result.SHA256)
	if result.Result.BackupPath != "" {
		grey.Fprintf(out, "   Previous image kept at %s\n", result.Result.BackupPath)
	}
}
