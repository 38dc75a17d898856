package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	pageText    bool
	pageFast    bool
	pageTimeout time.Duration
)

// pageCmd represents the page command
var pageCmd = &cobra.Command{
	Use:   "page <title>",
	Short: "Resolve a title and print its remote page info",
	Long: `Page decides whether a title is mirrored and prints what the mirror
knows about it. With --fast only the shadow tables are consulted.

Example:
  wikimirror page "Main Page"
  wikimirror page Foo --text
  wikimirror page Template:Infobox --fast`,
	Args: cobra.ExactArgs(1),
	RunE: runPage,
}

func init() {
	rootCmd.AddCommand(pageCmd)

	pageCmd.Flags().BoolVar(&pageText, "text", false, "print the parsed text instead of page info")
	pageCmd.Flags().BoolVar(&pageFast, "fast", false, "only evaluate whether the title can be mirrored")
	pageCmd.Flags().DurationVar(&pageTimeout, "timeout", time.Minute, "overall timeout")
}

func runPage(cmd *cobra.Command, args []string) error {
	return withApp(pageTimeout, func(ctx context.Context, a *app) error {
		m, err := a.mirror()
		if err != nil {
			return err
		}
		t, err := m.Codec().Parse(args[0])
		if err != nil {
			return err
		}

		mirrored := m.CanMirror(ctx, t, pageFast)
		fmt.Fprintf(os.Stderr, "%s: %s\n", m.Codec().PrefixedText(t), m.Status(ctx, t))
		if !mirrored || pageFast {
			if target, err := m.GetRedirectTarget(ctx, t); err == nil && target != nil {
				fmt.Fprintf(os.Stderr, "redirects to %s\n", m.Codec().PrefixedText(*target))
			}
			return nil
		}

		var out any
		if pageText {
			out, err = m.GetCachedText(ctx, t)
		} else {
			out, err = m.GetCachedPage(ctx, t)
		}
		if err != nil {
			return err
		}

		if history, err := m.HistoryURL(ctx, t); err == nil && verbose {
			fmt.Fprintf(os.Stderr, "history: %s\n", history)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	})
}
