package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scimap/internal/worker"
)

var checkTimeout time.Duration

type probeResult struct {
	name    string
	err     error
	elapsed time.Duration
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the completion backend and the upstream services",
	Long: `Check probes every service a run depends on, concurrently, and reports
which ones answer. A run refuses to start when the completion backend
is down; the other services only degrade results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		probe := func(name string, fn func(ctx context.Context) error) worker.Task[probeResult] {
			return func(ctx context.Context) probeResult {
				started := time.Now()
				err := fn(ctx)
				return probeResult{name: name, err: err, elapsed: time.Since(started)}
			}
		}

		tasks := []worker.Task[probeResult]{
			probe(fmt.Sprintf("completion (%s/%s)", a.provider.Name(), a.provider.Model()), a.provider.IsAvailable),
			probe("wikidata", a.wikidata.Ping),
			probe("pageviews", func(ctx context.Context) error {
				_, err := a.pageviews.Lookup(ctx, "Leonhard_Euler")
				return err
			}),
		}
		if a.robots != nil {
			tasks = append(tasks, probe("wikipedia robots.txt", func(ctx context.Context) error {
				allowed, _, err := a.robots.CanFetch(ctx, "https://en.wikipedia.org/wiki/Leonhard_Euler")
				if err == nil && !allowed {
					return fmt.Errorf("article pages are disallowed for this user agent")
				}
				return err
			}))
		}

		results := worker.NewPool[probeResult](len(tasks)).Run(ctx, tasks)

		fmt.Println(banner)
		fmt.Println("  scimap check")
		fmt.Println(banner)
		fmt.Println()

		var backendErr error
		for i, r := range results {
			if r.name == "" {
				r.name, r.err = "probe", ctx.Err()
			}
			if r.err != nil {
				fmt.Printf("✗ %-36s %v\n", r.name, r.err)
				if i == 0 {
					backendErr = r.err
				}
				continue
			}
			fmt.Printf("✓ %-36s %s\n", r.name, r.elapsed.Round(time.Millisecond))
		}
		fmt.Println()

		if backendErr != nil {
			return fmt.Errorf("completion backend unavailable: %w", backendErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "overall probe timeout")
}
