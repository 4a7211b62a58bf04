package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scimap/internal/model"
)

var (
	rankTarget  int
	rankExplain bool
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print the ranked candidate list without extracting anything",
	Long: `Rank runs the Wikidata query and prints the top candidates with their
priority scores. With --explain every contributing signal is listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		target := cfg.Pipeline.Target
		if cmd.Flags().Changed("target") {
			target = rankTarget
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		candidates, err := a.wikidata.Query(ctx, a.query())
		if err != nil {
			return fmt.Errorf("query candidates: %w", err)
		}

		scorer := a.scorer()
		ranked := scorer.Rank(candidates, target)

		fmt.Println(banner)
		fmt.Printf("  Top %d of %d candidates\n", len(ranked), len(candidates))
		fmt.Println(banner)
		fmt.Println()
		for i, c := range ranked {
			fmt.Printf("%4d. %-40s %4d  %s\n", i+1, c.Name, c.Priority, lifespan(c))
			if !rankExplain {
				continue
			}
			for _, sig := range scorer.Explain(c).Signals {
				detail := ""
				if sig.Detail != "" {
					detail = " (" + sig.Detail + ")"
				}
				fmt.Printf("        %+4d %s%s\n", sig.Points, sig.Name, detail)
			}
		}
		fmt.Println()
		return nil
	},
}

func lifespan(c model.Candidate) string {
	year := func(y *int) string {
		if y == nil {
			return "?"
		}
		return fmt.Sprint(*y)
	}
	parts := []string{year(c.BirthYear) + "-" + year(c.DeathYear)}
	if c.Nationality != "" {
		parts = append(parts, c.Nationality)
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().IntVar(&rankTarget, "target", 50, "number of candidates to show")
	rankCmd.Flags().BoolVar(&rankExplain, "explain", false, "list the signals behind each score")
}
