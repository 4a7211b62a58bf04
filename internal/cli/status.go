package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scimap/internal/checkpoint"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress without touching the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Output.CheckpointPath()
		cp := checkpoint.Load(path)
		completed, failed := cp.Counts()

		fmt.Println(banner)
		fmt.Println("  scimap status")
		fmt.Println(banner)
		fmt.Println()
		fmt.Printf("  Checkpoint: %s\n", path)
		if _, err := os.Stat(path); err != nil {
			fmt.Println("  (no checkpoint yet, run `scimap run` to start)")
			fmt.Println()
			return nil
		}
		if updated := cp.LastUpdated(); !updated.IsZero() {
			fmt.Printf("  Updated:    %s\n", updated.Local().Format(time.RFC1123))
		}
		fmt.Printf("  Completed:  %d\n", completed)
		fmt.Printf("  Failed:     %d\n", failed)
		if total := completed + failed; total > 0 {
			fmt.Printf("  Success:    %.1f%%\n", 100*float64(completed)/float64(total))
		}

		if failed > 0 {
			fmt.Printf("\n  Failed IDs (run `scimap retry`):\n")
			for _, id := range cp.FailedInOrder() {
				fmt.Printf("    - %s\n", id)
			}
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
