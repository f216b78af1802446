package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Batch    string // optional - restrict to one batch
	Kind     string // optional - filter to one event kind
}

// TraceEvent is one journaled event as printed by the trace command.
type TraceEvent struct {
	Seq    int64       `json:"seq"`
	Batch  string      `json:"batch"`
	Kind   string      `json:"kind"`
	Slot   string      `json:"slot,omitempty"`
	Detail ir.IRObject `json:"detail,omitempty"`
}

// TraceBatch summarizes one batch of the journal.
type TraceBatch struct {
	Batch    string `json:"batch"`
	FirstSeq int64  `json:"first_seq"`
	LastSeq  int64  `json:"last_seq"`
	Events   int    `json:"events"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Meta     map[string]string `json:"meta"` // schema hash and versions of the writer
	Batch    string            `json:"batch,omitempty"`
	Batches  []TraceBatch      `json:"batches"`
	Timeline []TraceEvent      `json:"timeline"`
	Stats    map[string]int    `json:"stats"` // event count per kind
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print journaled engine activity",
		Long: `Print the engine activity recorded in a journal.

Every mutation, invalidation, recomputation and settle is journaled with
its batch token. Without --batch the whole journal is printed along with a
summary of its batches.

Examples:
  derive trace --db ./trace.db
  derive trace --db ./trace.db --batch batch-3
  derive trace --db ./trace.db --kind recomputed
  derive trace --db ./trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "batch token to print")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	// Opening a missing path would create an empty journal.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var events []journal.Event
	if opts.Batch != "" {
		events, err = j.ReadBatch(ctx, opts.Batch)
	} else {
		events, err = j.ReadAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	summaries, err := j.Batches(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list batches", err)
	}

	stamps, err := journal.Stamps(ctx, j)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal meta", err)
	}

	result := TraceResult{
		Meta:     stamps,
		Batch:    opts.Batch,
		Batches:  []TraceBatch{},
		Timeline: buildTimeline(events, opts.Kind),
		Stats:    map[string]int{},
	}
	for _, b := range summaries {
		if opts.Batch != "" && b.Batch != opts.Batch {
			continue
		}
		result.Batches = append(result.Batches, TraceBatch(b))
	}
	for _, ev := range result.Timeline {
		result.Stats[ev.Kind]++
	}

	if opts.Format == "json" {
		formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return formatter.Success(result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline converts journal rows to timeline events, keeping only
// kind when it is set.
func buildTimeline(events []journal.Event, kind string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, ev := range events {
		if kind != "" && ev.Kind != kind {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:    ev.Seq,
			Batch:  ev.Batch,
			Kind:   ev.Kind,
			Slot:   ev.Slot(),
			Detail: ev.Detail,
		})
	}
	return timeline
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		if result.Batch != "" {
			fmt.Fprintf(w, "No events found for batch: %s\n", result.Batch)
		} else {
			fmt.Fprintln(w, "No events found.")
		}
		return nil
	}

	if hash, ok := result.Meta[journal.MetaSchemaHash]; ok {
		fmt.Fprintf(w, "Schema %s (engine %s)\n\n", shortHash(hash), result.Meta[journal.MetaEngineVersion])
	}

	if result.Batch == "" {
		fmt.Fprintf(w, "Batches (%d):\n", len(result.Batches))
		for _, b := range result.Batches {
			fmt.Fprintf(w, "  %s  seq %d-%d  %d events\n", b.Batch, b.FirstSeq, b.LastSeq, b.Events)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Timeline:")
	for _, ev := range result.Timeline {
		line := fmt.Sprintf("  [%d] %s %-11s %s", ev.Seq, ev.Batch, ev.Kind, ev.Slot)
		if verbose && len(ev.Detail) > 0 {
			if detail, err := ir.MarshalCanonical(ev.Detail); err == nil {
				line += " " + string(detail)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}

	fmt.Fprintln(w)
	kinds := slices.Sorted(maps.Keys(result.Stats))
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, result.Stats[k]))
	}
	fmt.Fprintf(w, "%d events: %s\n", len(result.Timeline), strings.Join(parts, " "))
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
