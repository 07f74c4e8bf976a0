package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/logsink/internal/buffers"
	"github.com/ppiankov/logsink/internal/ingest"
	"github.com/ppiankov/logsink/internal/rotate"
)

func newServeCmd() *cobra.Command {
	var (
		port           int
		bind           string
		httpAddr       string
		file           string
		maxSizeStr     string
		maxArchives    int
		intervalStr    string
		ringSize       int
		redactFlag     string
		redactPatterns string
		webhookURLs    []string
		webhookEvents  string
		headless       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the syslog receiver",
		Long:  "Listen for syslog messages over UDP and TCP, keep a recent-entry window, persist everything to a rotating JSONL file.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			applyConfigDefaults(cmd)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveOpts{
				port:           port,
				bind:           bind,
				httpAddr:       httpAddr,
				file:           file,
				maxSizeStr:     maxSizeStr,
				maxArchives:    maxArchives,
				intervalStr:    intervalStr,
				ringSize:       ringSize,
				redactFlag:     redactFlag,
				redactPatterns: redactPatterns,
				webhookURLs:    webhookURLs,
				webhookEvents:  webhookEvents,
				headless:       headless,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 514, "syslog port for both UDP and TCP")
	cmd.Flags().StringVar(&bind, "bind", "0.0.0.0", "address to bind the syslog listeners to")
	cmd.Flags().StringVar(&httpAddr, "http", ":8080", "HTTP read API listen address")
	cmd.Flags().StringVar(&file, "file", "syslog.jsonl", "active log file path")
	cmd.Flags().StringVar(&maxSizeStr, "max-size", "100MB", "active file size that triggers rotation")
	cmd.Flags().IntVar(&maxArchives, "max-archives", 10, "rotated archives to retain")
	cmd.Flags().StringVar(&intervalStr, "check-interval", "60s", "rotation size check cadence")
	cmd.Flags().IntVar(&ringSize, "ring-size", 1000, "recent entries kept in memory")
	cmd.Flags().StringVar(&redactFlag, "redact", "", "enable PII redaction (true or comma-separated pattern names)")
	cmd.Flags().StringVar(&redactPatterns, "redact-patterns", "", "path to custom redaction patterns YAML file")
	cmd.Flags().StringSliceVar(&webhookURLs, "webhook", nil, "webhook URLs to notify on lifecycle events (repeatable)")
	cmd.Flags().StringVar(&webhookEvents, "webhook-events", "", "comma-separated event filter (start,stop,rotation,error)")
	cmd.Flags().BoolVar(&headless, "headless", false, "disable TUI, log to stderr")

	return cmd
}

type serveOpts struct {
	port           int
	bind           string
	httpAddr       string
	file           string
	maxSizeStr     string
	maxArchives    int
	intervalStr    string
	ringSize       int
	redactFlag     string
	redactPatterns string
	webhookURLs    []string
	webhookEvents  string
	headless       bool
}

func runServe(opts serveOpts) error {
	maxSize, err := parseByteSize(opts.maxSizeStr)
	if err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	interval, err := time.ParseDuration(opts.intervalStr)
	if err != nil {
		return fmt.Errorf("invalid --check-interval: %w", err)
	}

	dir := filepath.Dir(opts.file)
	meta := &ingest.Metadata{
		Version: 1,
		Format:  "jsonl",
		Started: time.Now(),
	}

	// redactor
	var redactor *ingest.Redactor
	redactEnabled, redactNames := ingest.ParseRedactFlag(opts.redactFlag)
	if redactEnabled {
		redactor, err = ingest.NewRedactor(redactNames)
		if err != nil {
			return fmt.Errorf("init redactor: %w", err)
		}
		if opts.redactPatterns != "" {
			if err := redactor.LoadCustomPatterns(opts.redactPatterns); err != nil {
				return fmt.Errorf("load custom patterns: %w", err)
			}
		}
	}

	// rotator owns the active file
	rot, err := rotate.New(rotate.Config{
		Path:        opts.file,
		MaxSize:     maxSize,
		MaxArchives: opts.maxArchives,
		Interval:    interval,
	})
	if err != nil {
		return fmt.Errorf("init rotator: %w", err)
	}

	// webhook dispatcher, config URLs apply when CLI provides none
	webhookURLs := opts.webhookURLs
	if len(webhookURLs) == 0 && cfg != nil && len(cfg.Serve.Webhooks) > 0 {
		webhookURLs = cfg.Serve.Webhooks
	}
	var eventFilter []string
	if opts.webhookEvents != "" {
		eventFilter = strings.Split(opts.webhookEvents, ",")
	}
	dispatcher := ingest.NewWebhookDispatcher(webhookURLs, eventFilter)

	metrics := ingest.NewMetrics(prometheus.DefaultRegisterer)
	stats := ingest.NewStats()
	ring := buffers.NewLogRing(opts.ringSize)

	store := ingest.NewStore(ring, rot)
	store.SetRedactor(redactor)
	store.SetMetrics(metrics)
	store.SetStats(stats)

	// replay the active file so the recent window survives restarts
	loaded, err := store.LoadExisting()
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay active file: %v\n", err)
	}

	audit, err := ingest.NewAuditLogger(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		return fmt.Errorf("init audit logger: %w", err)
	}

	rot.SetOnRotate(func() {
		metrics.RotationTotal.Inc()
		audit.Log(ingest.AuditEntry{Event: "rotation"})
		dispatcher.Fire(ingest.WebhookEvent{Event: "rotation", Path: opts.file})
	})
	rot.SetOnError(func(rerr error) {
		metrics.RotationErrors.Inc()
		audit.Log(ingest.AuditEntry{Event: "rotation_error", Detail: rerr.Error()})
		dispatcher.Fire(ingest.WebhookEvent{Event: "error", Path: opts.file, Detail: rerr.Error()})
		fmt.Fprintf(os.Stderr, "rotation: %v\n", rerr)
	})

	// syslog listeners: a bind failure here is the one fatal condition
	listenAddr := net.JoinHostPort(opts.bind, strconv.Itoa(opts.port))
	udp, err := ingest.NewUDPListener(listenAddr, store)
	if err != nil {
		return err
	}
	udp.SetMetrics(metrics)
	tcp, err := ingest.NewTCPListener(listenAddr, store)
	if err != nil {
		return err
	}
	tcp.SetMetrics(metrics)

	if err := ingest.WriteMetadata(dir, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	srv := ingest.NewServer(opts.httpAddr, store)
	srv.SetVersion(version)

	audit.Log(ingest.AuditEntry{Event: "server_started"})
	dispatcher.Fire(ingest.WebhookEvent{Event: "start", Path: opts.file})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go udp.Run(ctx)
	go tcp.Run(ctx)
	go rot.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if srvErr := srv.ListenAndServe(); srvErr != nil {
			errCh <- srvErr
		}
	}()

	shutdown := func() {
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)

		if err := rot.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "rotator close: %v\n", err)
		}

		meta.Stopped = time.Now()
		meta.TotalLines = store.LinesAppended()
		meta.TotalBytes = store.BytesAppended()
		if err := ingest.WriteMetadata(dir, meta); err != nil {
			fmt.Fprintf(os.Stderr, "update metadata: %v\n", err)
		}

		audit.Log(ingest.AuditEntry{Event: "server_stopped"})
		_ = audit.Close()

		dispatcher.Fire(ingest.WebhookEvent{
			Event: "stop",
			Path:  opts.file,
			Stats: &ingest.WebhookStats{
				LinesWritten: store.LinesAppended(),
				BytesWritten: store.BytesAppended(),
			},
		})
	}

	if loaded > 0 {
		fmt.Fprintf(os.Stderr, "replayed %d entries from %s\n", loaded, opts.file)
	}

	if opts.headless {
		return runHeadless(listenAddr, opts.file, store, errCh, shutdown)
	}
	return runTUI(store, stats, listenAddr, opts.file, errCh, shutdown)
}

func runHeadless(listen, file string, store *ingest.Store, errCh <-chan error, shutdown func()) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(os.Stderr, "logsink listening on %s (udp+tcp), writing to %s\n", listen, file)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err.Error() != "http: Server closed" {
			shutdown()
			return err
		}
	}

	fmt.Fprintln(os.Stderr, "shutting down...")
	shutdown()
	fmt.Fprintf(os.Stderr, "done: %d lines, %d bytes written\n",
		store.LinesAppended(), store.BytesAppended())
	return nil
}

func runTUI(store *ingest.Store, stats *ingest.Stats, listen, file string, errCh <-chan error, shutdown func()) error {
	model := ingest.NewTUIModel(store, stats, listen, file)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		if err := <-errCh; err != nil {
			if err.Error() != "http: Server closed" {
				p.Quit()
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}

	shutdown()
	return nil
}

var byteSizePattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?B)?$`)

func parseByteSize(s string) (int64, error) {
	m := byteSizePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	switch m[2] {
	case "TB":
		val *= 1 << 40
	case "GB":
		val *= 1 << 30
	case "MB":
		val *= 1 << 20
	case "KB":
		val *= 1 << 10
	case "B", "":
	}
	return int64(val), nil
}
