package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/worker"
)

// markImportedCmd represents the mark-imported command
var markImportedCmd = &cobra.Command{
	Use:   "mark-imported <file>",
	Short: "Record titles imported from outside as forked",
	Long: `Mark-imported records every title in a file (one per line) as an
imported fork before an external import runs, so readers never see the
mirrored copy in between. Titles that already exist locally are skipped.

Example:
  wikimirror mark-imported imported_titles.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runMarkImported,
}

// redirectsCmd represents the redirects command
var redirectsCmd = &cobra.Command{
	Use:   "redirects <title>",
	Short: "List remote redirects pointing to a title",
	Args:  cobra.ExactArgs(1),
	RunE:  runRedirects,
}

func init() {
	rootCmd.AddCommand(markImportedCmd)
	rootCmd.AddCommand(redirectsCmd)
}

func runMarkImported(cmd *cobra.Command, args []string) error {
	lines, err := worker.ReadTitlesFromFile(args[0])
	if err != nil {
		return err
	}

	return withApp(time.Minute, func(ctx context.Context, a *app) error {
		m, err := a.mirror()
		if err != nil {
			return err
		}

		titles := make([]model.Title, 0, len(lines))
		for _, line := range lines {
			t, err := a.codec.Parse(line)
			if err != nil {
				fmt.Printf("  skipped %q: %v\n", line, err)
				continue
			}
			titles = append(titles, t)
		}

		var existsErr error
		n, err := a.registry.MarkImported(titles, func(t model.Title) bool {
			exists, err := a.local.PageExists(ctx, t)
			if err != nil && existsErr == nil {
				existsErr = err
			}
			return exists || err != nil
		})
		if err != nil {
			return fmt.Errorf("mark imported: %w", err)
		}
		if existsErr != nil {
			return fmt.Errorf("check local pages: %w", existsErr)
		}

		for _, t := range titles {
			m.MarkForImport(t)
		}
		fmt.Printf("✓ Marked %d of %d titles as imported\n", n, len(titles))
		return nil
	})
}

func runRedirects(cmd *cobra.Command, args []string) error {
	return withApp(time.Minute, func(ctx context.Context, a *app) error {
		t, err := a.codec.Parse(args[0])
		if err != nil {
			return err
		}
		sources, err := a.registry.RedirectsTo(t)
		if err != nil {
			return err
		}
		for _, p := range sources {
			fmt.Println(a.codec.PrefixedText(p.TitleValue()))
		}
		return nil
	})
}
