package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsink/internal/cli"
	"github.com/ppiankov/logsink/internal/logtypes"
)

func newWatchCmd() *cobra.Command {
	var (
		addr        string
		lines       int
		grepStr     string
		source      string
		intervalStr string
		follow      bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail a running receiver's recent entries",
		Long: `Watch polls the read API of a running logsink server and streams
entries to stdout. With --follow it keeps polling like 'tail -f';
otherwise it prints the last N entries and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(addr, lines, grepStr, source, intervalStr, follow, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8080", "read API base URL")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "number of initial lines to show")
	cmd.Flags().StringVar(&grepStr, "grep", "", "regex filter on message content")
	cmd.Flags().StringVar(&source, "source", "", "only show entries from this sender")
	cmd.Flags().StringVar(&intervalStr, "interval", "1s", "poll interval in follow mode")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runWatch(addr string, n int, grepStr, source, intervalStr string, follow, jsonOutput bool) error {
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return cli.NewUsageError(fmt.Sprintf("invalid --interval: %v", err))
	}

	var grepRe *regexp.Regexp
	if grepStr != "" {
		grepRe, err = regexp.Compile(grepStr)
		if err != nil {
			return cli.NewUsageError(fmt.Sprintf("compile grep pattern: %v", err))
		}
	}

	match := func(e logtypes.Entry) bool {
		if source != "" && e.Source != source {
			return false
		}
		if grepRe != nil && !grepRe.MatchString(e.Message) {
			return false
		}
		return true
	}

	client := &http.Client{Timeout: 10 * time.Second}
	enc := json.NewEncoder(os.Stdout)
	emit := func(e logtypes.Entry) {
		if !match(e) {
			return
		}
		if jsonOutput {
			_ = enc.Encode(e)
			return
		}
		fmt.Fprintf(os.Stdout, "%s [%s] %s\n",
			e.Timestamp.Format(logtypes.TimeLayout), e.Source, e.Message)
	}

	snap, err := fetchLogs(client, addr)
	if err != nil {
		return cli.NewNetworkError(fmt.Sprintf("fetch logs from %s: %v", addr, err))
	}
	start := len(snap) - n
	if start < 0 {
		start = 0
	}
	for _, e := range snap[start:] {
		emit(e)
	}
	if !follow {
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	prev := snap
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			curr, err := fetchLogs(client, addr)
			if err != nil {
				return cli.NewNetworkError(fmt.Sprintf("fetch logs from %s: %v", addr, err))
			}
			for _, e := range entriesAfter(prev, curr) {
				emit(e)
			}
			prev = curr
		}
	}
}

func fetchLogs(client *http.Client, addr string) ([]logtypes.Entry, error) {
	resp, err := client.Get(addr + "/api/logs")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var entries []logtypes.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// entriesAfter returns the entries in curr that follow the last entry
// of prev. Snapshots overlap between polls, so the anchor is located by
// scanning curr from the end. When the anchor has already left the
// window the whole snapshot is new.
func entriesAfter(prev, curr []logtypes.Entry) []logtypes.Entry {
	if len(prev) == 0 {
		return curr
	}
	last := prev[len(prev)-1]
	for i := len(curr) - 1; i >= 0; i-- {
		if sameEntry(curr[i], last) {
			return curr[i+1:]
		}
	}
	return curr
}

func sameEntry(a, b logtypes.Entry) bool {
	return a.Timestamp.Equal(b.Timestamp) && a.Source == b.Source && a.Message == b.Message
}
