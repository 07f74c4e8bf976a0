package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsink/internal/archive"
	"github.com/ppiankov/logsink/internal/ingest"
)

func newExportCmd() *cobra.Command {
	var (
		formatStr   string
		fromStr     string
		toStr       string
		source      string
		grepStr     string
		outPath     string
		maxArchives int
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "export <active-file>",
		Short: "Export a log set to parquet, CSV, or JSONL",
		Long:  "Convert a log set (rotated archives plus the active file) to external formats for ingestion into analytics systems (DuckDB, pandas, BigQuery, etc.).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], formatStr, fromStr, toStr, source, grepStr, outPath, maxArchives, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&formatStr, "format", "", "output format: parquet, csv, jsonl (required)")
	cmd.Flags().StringVar(&fromStr, "from", "", "start time filter (YYYY-MM-DD HH:MM:SS, HH:MM, or -30m)")
	cmd.Flags().StringVar(&toStr, "to", "", "end time filter (YYYY-MM-DD HH:MM:SS, HH:MM, or -30m)")
	cmd.Flags().StringVar(&source, "source", "", "only export entries from this sender")
	cmd.Flags().StringVar(&grepStr, "grep", "", "regex filter on log message")
	cmd.Flags().StringVar(&outPath, "out", "", "output file path (required)")
	cmd.Flags().IntVar(&maxArchives, "max-archives", 10, "highest archive index to look for")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output summary as JSON")
	_ = cmd.MarkFlagRequired("format")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(src, formatStr, fromStr, toStr, source, grepStr, outPath string, maxArchives int, jsonOutput bool) error {
	format, err := parseExportFormat(formatStr)
	if err != nil {
		return err
	}

	filter, err := buildFilter(fromStr, toStr, source, grepStr)
	if err != nil {
		return err
	}

	written, err := archive.Export(src, outPath, maxArchives, format, filter)
	if err != nil {
		return err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"source": src,
			"format": formatStr,
			"output": outPath,
			"lines":  written,
			"bytes":  info.Size(),
		})
	}

	_, _ = fmt.Fprintf(os.Stderr, "Exported: %d lines -> %s (%s)\n",
		written, outPath, ingest.FormatBytes(info.Size()))
	return nil
}

func parseExportFormat(s string) (archive.ExportFormat, error) {
	switch s {
	case "parquet":
		return archive.FormatParquet, nil
	case "csv":
		return archive.FormatCSV, nil
	case "jsonl":
		return archive.FormatJSONL, nil
	default:
		return "", fmt.Errorf("unsupported format %q: expected parquet, csv, or jsonl", s)
	}
}

func buildFilter(fromStr, toStr, source, grepStr string) (*archive.Filter, error) {
	if fromStr == "" && toStr == "" && source == "" && grepStr == "" {
		return nil, nil
	}

	now := time.Now()
	filter := &archive.Filter{Source: source}

	var err error
	filter.From, err = archive.ParseTimeFlag(fromStr, now, now)
	if err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	filter.To, err = archive.ParseTimeFlag(toStr, now, now)
	if err != nil {
		return nil, fmt.Errorf("invalid --to: %w", err)
	}

	if grepStr != "" {
		filter.Grep, err = regexp.Compile(grepStr)
		if err != nil {
			return nil, fmt.Errorf("compile grep pattern: %w", err)
		}
	}

	return filter, nil
}
