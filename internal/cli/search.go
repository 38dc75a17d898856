package cli

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/search"
)

var (
	searchPrefix     bool
	searchTitles     bool
	searchLimit      int
	searchOffset     int
	searchNamespaces []int
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the remote wiki",
	Long: `Search runs a full-text search on the remote wiki. With --prefix it
lists mirrored titles starting with the query instead, from the local copy
of the remote page list.

Example:
  wikimirror search "solar eclipse" --limit 50
  wikimirror search Sola --prefix`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolVar(&searchPrefix, "prefix", false, "prefix search over known remote titles")
	searchCmd.Flags().BoolVar(&searchTitles, "titles", false, "match titles instead of page text")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	searchCmd.Flags().IntSliceVar(&searchNamespaces, "namespace", []int{model.NSMain}, "namespaces to search")
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withApp(time.Minute, func(ctx context.Context, a *app) error {
		s := a.searcher()

		if searchPrefix {
			titles, err := s.PrefixSearch(args[0], searchNamespaces, searchLimit, searchOffset)
			if err != nil {
				return err
			}
			for _, t := range titles {
				fmt.Println(a.codec.PrefixedText(t))
			}
			return nil
		}

		what := search.WhatText
		if searchTitles {
			what = search.WhatTitle
		}
		results, err := s.Search(ctx, search.Query{
			Term:       args[0],
			What:       what,
			Namespaces: searchNamespaces,
			Limit:      searchLimit,
			Offset:     searchOffset,
		})
		if err != nil {
			return err
		}

		for _, r := range results.Results {
			fmt.Printf("%s\n    %s\n", a.codec.PrefixedText(r.Title), html.UnescapeString(tagPattern.ReplaceAllString(r.Snippet, "")))
		}
		fmt.Printf("\n%d of %d results", len(results.Results), results.TotalHits)
		if results.More {
			fmt.Printf(" (more with --offset %d)", searchOffset+len(results.Results))
		}
		fmt.Println()
		return nil
	})
}
