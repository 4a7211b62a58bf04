// Developer tool: scrape article pages and print what the pipeline would
// see for them, without a completion backend or checkpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/scimap/internal/extract"
	"github.com/ppiankov/scimap/internal/upstream"
	"github.com/ppiankov/scimap/internal/upstream/pageviews"
	"github.com/ppiankov/scimap/internal/upstream/wikipedia"
)

func main() {
	urls := os.Args[1:]
	if len(urls) == 0 {
		urls = []string{
			"https://en.wikipedia.org/wiki/Leonhard_Euler",
			"https://en.wikipedia.org/wiki/Maria_Gaetana_Agnesi",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	scraper := wikipedia.NewScraper(wikipedia.NewRobotsChecker(upstream.DefaultUserAgent, nil))
	views := pageviews.NewClient(pageviews.DefaultPeriodDays)

	fmt.Println("=== Scrape Probe ===")
	fmt.Println()

	failed := 0
	for _, url := range urls {
		fmt.Printf("Probing: %s\n", url)
		fmt.Println(strings.Repeat("-", 60))

		bio, err := scraper.Fetch(ctx, url)
		if err != nil {
			failed++
			fmt.Printf("  ✗ scrape: %v\n\n", err)
			continue
		}

		fmt.Printf("  Title:      %s\n", bio.Title)
		fmt.Printf("  Method:     %s\n", bio.Method)
		fmt.Printf("  HTML bytes: %d\n", bio.RawHTMLLength)
		fmt.Printf("  Paragraphs: %d\n", len(bio.Paragraphs))

		if len(bio.Infobox) > 0 {
			fmt.Println("  Infobox:")
			keys := make([]string, 0, len(bio.Infobox))
			for k := range bio.Infobox {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("    %-20s %s\n", k, truncate(bio.Infobox[k], 60))
			}
		}

		text := extract.BiographyText(*bio, 3, 2500)
		fmt.Printf("  Prompt text (%d chars):\n    %s\n", len([]rune(text)), truncate(text, 300))

		pop, err := views.Lookup(ctx, bio.PageTitle)
		if err != nil {
			fmt.Printf("  ✗ pageviews: %v\n", err)
		} else {
			fmt.Printf("  Pageviews:  %d total, %.2f/day, tier %s\n", pop.TotalViews, pop.AvgDailyViews, pop.Tier)
		}
		fmt.Println()
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
