package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsink/internal/archive"
	"github.com/ppiankov/logsink/internal/cloud"
	"github.com/ppiankov/logsink/internal/ingest"
)

func newUploadCmd() *cobra.Command {
	var (
		to          string
		maxArchives int
		concurrency int
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "upload <active-file>",
		Short: "Upload a log set to cloud storage",
		Long:  "Upload a log set (rotated archives, the active file, and metadata) to S3 or GCS.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			return runUpload(cmd.Context(), args[0], to, maxArchives, concurrency, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination URL (s3://bucket/prefix or gs://bucket/prefix)")
	cmd.Flags().IntVar(&maxArchives, "max-archives", 10, "highest archive index to look for")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of parallel uploads")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output summary as JSON")

	return cmd
}

func runUpload(ctx context.Context, file, toURL string, maxArchives, concurrency int, jsonOutput bool) error {
	reader, err := archive.NewReader(file, maxArchives)
	if err != nil {
		return fmt.Errorf("resolve log set: %w", err)
	}

	scheme, bucket, prefix, err := cloud.ParseURL(toURL)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	backend, err := cloud.NewBackend(ctx, scheme, bucket)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", scheme, err)
	}

	paths := make([]string, 0, len(reader.Files())+1)
	for _, f := range reader.Files() {
		paths = append(paths, f.Path)
	}
	// metadata.json rides along when the serve command produced one
	metaPath := filepath.Join(filepath.Dir(file), "metadata.json")
	if _, err := os.Stat(metaPath); err == nil {
		paths = append(paths, metaPath)
	}

	stats, err := uploadFiles(ctx, paths, backend, prefix, concurrency)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"source":      file,
			"destination": toURL,
			"files":       stats.files,
			"bytes":       stats.bytes,
		})
	}

	_, _ = fmt.Fprintf(os.Stderr, "Uploaded %d files (%s) to %s\n",
		stats.files, ingest.FormatBytes(stats.bytes), toURL)
	return nil
}

type uploadStats struct {
	files int
	bytes int64
}

func uploadFiles(ctx context.Context, paths []string, backend cloud.Backend, prefix string, concurrency int) (uploadStats, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		uploadedBytes atomic.Int64
		sem           = make(chan struct{}, concurrency)
		wg            sync.WaitGroup
		firstErr      error
		errOnce       sync.Once
	)

	for _, path := range paths {
		sem <- struct{}{}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			key := filepath.Base(path)
			if prefix != "" {
				key = prefix + "/" + key
			}

			info, err := os.Stat(path)
			if err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("stat %s: %w", path, err) })
				return
			}
			f, err := os.Open(path)
			if err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("open %s: %w", path, err) })
				return
			}
			defer func() { _ = f.Close() }()

			if err := backend.Upload(ctx, key, f, info.Size()); err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("upload %s: %w", key, err) })
				return
			}
			uploadedBytes.Add(info.Size())
		}(path)
	}

	wg.Wait()

	if firstErr != nil {
		return uploadStats{}, firstErr
	}
	return uploadStats{files: len(paths), bytes: uploadedBytes.Load()}, nil
}
