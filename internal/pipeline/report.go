package pipeline

import (
	"fmt"
	"io"
	"strings"
)

const rule = "═══════════════════════════════════════════════════════════"

// Reporter prints human progress, normally to stderr
type Reporter struct {
	w io.Writer
}

// NewReporter writes to w. A nil w discards output.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{w: w}
}

func (r *Reporter) box(title string) {
	fmt.Fprintf(r.w, "\n%s\n  %s\n%s\n\n", rule, title, rule)
}

func (r *Reporter) start(mode Mode, queued, skipped int, unresolved []string) {
	r.box("scimap " + string(mode))
	fmt.Fprintf(r.w, "  Queued:     %d\n", queued)
	fmt.Fprintf(r.w, "  Skipped:    %d (already completed)\n", skipped)
	if len(unresolved) > 0 {
		fmt.Fprintf(r.w, "  Unresolved: %s\n", strings.Join(unresolved, ", "))
	}
	fmt.Fprintln(r.w)
}

func (r *Reporter) entity(i, n int, key string, err error) {
	if err != nil {
		fmt.Fprintf(r.w, "✗ [%d/%d] %s: %v\n", i, n, key, err)
		return
	}
	fmt.Fprintf(r.w, "✓ [%d/%d] %s\n", i, n, key)
}

func (r *Reporter) progress(s *Summary, completed, failed int) {
	fmt.Fprintf(r.w, "\n  ── progress: session %d ok / %d failed · total %d completed / %d failed · success rate %.1f%%\n\n",
		s.Succeeded, s.Failed, completed, failed, s.SuccessRate())
}

func (r *Reporter) finish(s *Summary, completed, failed int) {
	r.box("Run Complete")
	fmt.Fprintf(r.w, "  Processed:  %d\n", s.Processed)
	fmt.Fprintf(r.w, "  Succeeded:  %d\n", s.Succeeded)
	fmt.Fprintf(r.w, "  Failed:     %d\n", s.Failed)
	fmt.Fprintf(r.w, "  Skipped:    %d\n", s.Skipped)
	fmt.Fprintf(r.w, "  Checkpoint: %d completed, %d failed\n", completed, failed)
	fmt.Fprintf(r.w, "  Duration:   %s\n", s.Duration.Round(1e9))
	if s.Mode == ModeRetry {
		fmt.Fprintf(r.w, "  Recovered:  %d\n", len(s.Recovered))
	}
	if len(s.FailedIDs) > 0 {
		fmt.Fprintf(r.w, "\n  Failed IDs (run `scimap retry`):\n")
		for _, id := range s.FailedIDs {
			fmt.Fprintf(r.w, "    - %s\n", id)
		}
	}
	fmt.Fprintln(r.w)
}
