package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"otc-swaps/internal/reporting"
)

func runReport(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "report")
	common := addCommon(fs, env, false)
	window := fs.Duration("window", 24*time.Hour, "Report window ending at -to")
	from := fs.Int64("from", 0, "Range start, unix seconds (overrides -window)")
	to := fs.Int64("to", 0, "Range end, unix seconds (defaults to now)")
	format := fs.String("format", "md", "Output format: md, csv, events-csv")
	outputDir := fs.String("output-dir", "", "Write REPORT.md / SWAPS.csv / EVENTS.csv here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	end := *to
	if end == 0 {
		end = time.Now().Unix()
	}
	start := *from
	if start == 0 {
		start = end - int64(window.Seconds())
	}

	client, _ := common.client()

	var content, name string
	switch *format {
	case "md":
		report, err := reporting.NewGenerator(client).Generate(ctx, start, end)
		if err != nil {
			return err
		}
		content, name = reporting.RenderMarkdown(report), "REPORT.md"
	case "csv":
		report, err := reporting.NewGenerator(client).Generate(ctx, start, end)
		if err != nil {
			return err
		}
		content, name = reporting.RenderSwapsCSV(report.Swaps), "SWAPS.csv"
	case "events-csv":
		events, err := client.GetByTimeRange(ctx, start, end)
		if err != nil {
			return err
		}
		content, name = reporting.RenderEventsCSV(events), "EVENTS.csv"
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *outputDir == "" {
		_, err := fmt.Fprint(env.stdout, content)
		return err
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(*outputDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	fmt.Fprintf(env.stdout, "Wrote %s\n", path)
	return nil
}
