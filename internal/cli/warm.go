package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikimirror/internal/worker"
)

var (
	concurrency int
	warmTimeout time.Duration
)

// warmCmd represents the warm command
var warmCmd = &cobra.Command{
	Use:   "warm <file>",
	Short: "Prime the caches for titles listed in a file",
	Long: `Warm resolves every title in a file (one per line, '#' comments
allowed) and fills the page and text caches for the mirrored ones.

Example:
  wikimirror warm titles.txt
  wikimirror warm titles.txt --concurrency 8 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)

	warmCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	warmCmd.Flags().DurationVar(&warmTimeout, "timeout", 10*time.Minute, "total timeout for the warm-up")
}

func runWarm(cmd *cobra.Command, args []string) error {
	file := args[0]
	return withApp(warmTimeout, func(ctx context.Context, a *app) error {
		m, err := a.mirror()
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
		fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
		fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", warmTimeout)
		fmt.Fprintf(os.Stderr, "\n")

		var done int32
		processor := worker.NewBatchProcessor(m, concurrency)
		processor.OnProgress(func(r *worker.WarmResult) {
			n := atomic.AddInt32(&done, 1)
			if verbose {
				fmt.Fprintf(os.Stderr, "  [%d] %s\n", n, r.Title)
			}
		})

		results, err := processor.ProcessFile(ctx, file)
		if err != nil {
			return fmt.Errorf("process file: %w", err)
		}

		mirrored, skipped, failed := 0, 0, 0
		for _, r := range results {
			switch {
			case r.Error != nil:
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Title, r.Error)
			case r.Mirrored:
				mirrored++
			default:
				skipped++
			}
		}

		fmt.Fprintf(os.Stderr, "\n✓ Warmed %d titles (%d not mirrored, %d failed)\n", mirrored, skipped, failed)
		if failed > 0 {
			return fmt.Errorf("%d titles failed", failed)
		}
		return nil
	})
}
