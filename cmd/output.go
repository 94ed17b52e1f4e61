package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// writeFormatted encodes v as JSON or YAML, or calls text for the text format.
func writeFormatted(w io.Writer, format config.OutputFormat, v interface{}, text func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return text(w)
	}
}

// outputCalls prints a page of calls.
func outputCalls(w io.Writer, format config.OutputFormat, calls []recents.EnrichedCall) error {
	if calls == nil {
		calls = []recents.EnrichedCall{}
	}
	return writeFormatted(w, format, calls, func(w io.Writer) error {
		return outputCallsText(w, calls)
	})
}

// outputCallsText formats calls for terminal display.
func outputCallsText(w io.Writer, calls []recents.EnrichedCall) error {
	if len(calls) == 0 {
		fmt.Fprintln(w, "No calls.")
		return nil
	}

	fmt.Fprintf(w, "  %-8s %-19s %-10s %-24s %-18s %8s %4s %s\n",
		"ID", "TIME", "TYPE", "NAME", "NUMBER", "DURATION", "SIM", "CALLS")
	fmt.Fprintf(w, "  %-8s %-19s %-10s %-24s %-18s %8s %4s %s\n",
		"--", "----", "----", "----", "------", "--------", "---", "-----")
	for _, c := range calls {
		sim := "-"
		if c.SimID != recents.NoSim {
			sim = fmt.Sprint(c.SimID)
		}
		number := c.PhoneNumber
		if c.IsUnknownNumber {
			number = "-"
		}
		fmt.Fprintf(w, "  %-8d %-19s %-10s %-24s %-18s %8s %4s %d\n",
			c.ID,
			time.Unix(c.StartTS, 0).Format("2006-01-02 15:04:05"),
			truncate(c.Type.String(), 10),
			truncate(c.Name, 24),
			truncate(number, 18),
			formatDuration(c.DurationSeconds),
			sim,
			len(c.AllIDs()))
	}
	fmt.Fprintf(w, "\n%d entries\n", len(calls))
	return nil
}

func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Hour {
		return fmt.Sprintf("%02d:%02d", int(d.Minutes()), seconds%60)
	}
	return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, seconds%60)
}

// mutationSummary is the machine-readable result of a mutation.
type mutationSummary struct {
	Operation string `json:"operation" yaml:"operation"`
	Outcome   string `json:"outcome" yaml:"outcome"`
	Affected  int    `json:"affected" yaml:"affected"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func outputMutation(w io.Writer, format config.OutputFormat, op string, res recents.MutationResult) error {
	summary := mutationSummary{Operation: op, Outcome: res.Outcome.String(), Affected: res.Affected}
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}
	return writeFormatted(w, format, summary, func(w io.Writer) error {
		switch {
		case res.Outcome == recents.OutcomeDenied:
			fmt.Fprintf(w, "%s: permission denied, nothing changed.\n", op)
		case res.Err != nil:
			fmt.Fprintf(w, "%s failed after %d record(s): %v\n", op, res.Affected, res.Err)
		default:
			fmt.Fprintf(w, "%s: %d record(s).\n", op, res.Affected)
		}
		return nil
	})
}
