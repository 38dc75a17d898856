package cli

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikimirror/internal/fork"
)

var (
	forkImport  bool
	forkComment string
	forkWatch   bool
	forkUser    string
)

// forkCmd represents the fork command
var forkCmd = &cobra.Command{
	Use:   "fork <title>",
	Short: "Stop mirroring a title, importing or tombstoning it",
	Long: `Fork records a title as forked so it is never mirrored again.

With --import the latest remote revision becomes a local page, attributed
to its remote author. Without it the title is tombstoned and can be
restored later with 'wikimirror unfork'.

Example:
  wikimirror fork "Some article" --import --comment "local edits"
  wikimirror fork "Unwanted article" --comment "off topic"`,
	Args: cobra.ExactArgs(1),
	RunE: runFork,
}

// unforkCmd represents the unfork command
var unforkCmd = &cobra.Command{
	Use:   "unfork <title>",
	Short: "Resume mirroring a tombstoned title",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnfork,
}

func init() {
	rootCmd.AddCommand(forkCmd)
	rootCmd.AddCommand(unforkCmd)

	forkCmd.Flags().BoolVar(&forkImport, "import", false, "import the latest remote revision")
	forkCmd.Flags().StringVar(&forkComment, "comment", "", "log comment")
	forkCmd.Flags().BoolVar(&forkWatch, "watch", false, "add the page to the user's watchlist")
	forkCmd.Flags().StringVar(&forkUser, "user", "", "performing user (default: current OS user)")

	unforkCmd.Flags().StringVar(&forkComment, "comment", "", "log comment")
	unforkCmd.Flags().StringVar(&forkUser, "user", "", "performing user (default: current OS user)")
}

func performer() string {
	if forkUser != "" {
		return forkUser
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "Maintenance script"
}

func runFork(cmd *cobra.Command, args []string) error {
	return withApp(2*time.Minute, func(ctx context.Context, a *app) error {
		forks, err := a.forks()
		if err != nil {
			return err
		}
		t, err := a.codec.Parse(args[0])
		if err != nil {
			return err
		}

		entry, err := forks.Fork(ctx, fork.Request{
			Title:   t,
			Import:  forkImport,
			Comment: forkComment,
			Watch:   forkWatch,
			User:    performer(),
		})
		if err != nil {
			return fmt.Errorf("fork failed: %w", err)
		}

		fmt.Printf("✓ Forked %s (%s, log %s)\n", a.codec.PrefixedText(t), entry.Type, entry.ID)
		return nil
	})
}

func runUnfork(cmd *cobra.Command, args []string) error {
	return withApp(time.Minute, func(ctx context.Context, a *app) error {
		forks, err := a.forks()
		if err != nil {
			return err
		}
		t, err := a.codec.Parse(args[0])
		if err != nil {
			return err
		}

		entry, err := forks.Unfork(ctx, t, performer(), forkComment)
		if err != nil {
			return fmt.Errorf("unfork failed: %w", err)
		}

		fmt.Printf("✓ Restored mirroring of %s (log %s)\n", a.codec.PrefixedText(t), entry.ID)
		return nil
	})
}
