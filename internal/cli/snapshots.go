package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ppiankov/wikimirror/internal/snapshot"
)

// snapshotsCmd represents the snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage the static page snapshot directory",
}

var snapshotsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import newline-delimited snapshot records",
	Long: `Import splits a newline-delimited file of article records into the
snapshot directory (mirror.snapshot_dir), one file per page. Pages with a
snapshot are served without calling the remote API.

Example:
  wikimirror snapshots import enwiki_namespace_0.ndjson`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := snapshot.NewStore(afero.NewOsFs(), cfg.Mirror.SnapshotDir)
		if !store.Enabled() {
			return fmt.Errorf("mirror.snapshot_dir is not configured")
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open records: %w", err)
		}
		defer func() { _ = f.Close() }()

		count, err := store.Import(f)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported %d snapshot records into %s\n", count, cfg.Mirror.SnapshotDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsImportCmd)
}
