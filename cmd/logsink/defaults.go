package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

// applyConfigDefaults sets flag values from config when the flag was
// not explicitly set on the command line. Precedence is flags > env >
// config > built-in defaults; the config package already folds env
// over config, so only unchanged flags are touched here.
func applyConfigDefaults(cmd *cobra.Command) {
	if cfg == nil {
		return
	}

	setDefault := func(name, value string) {
		if value != "" && !cmd.Flags().Changed(name) {
			if f := cmd.Flags().Lookup(name); f != nil {
				_ = f.Value.Set(value)
			}
		}
	}

	if cfg.Serve.Port > 0 {
		setDefault("port", strconv.Itoa(cfg.Serve.Port))
	}
	setDefault("bind", cfg.Serve.Bind)
	setDefault("http", cfg.Serve.HTTPAddr)
	setDefault("file", cfg.Serve.File)
	setDefault("max-size", cfg.Serve.MaxSize)
	if cfg.Serve.MaxArchives > 0 {
		setDefault("max-archives", strconv.Itoa(cfg.Serve.MaxArchives))
	}
	setDefault("check-interval", cfg.Serve.CheckInterval)
	if cfg.Serve.RingSize > 0 {
		setDefault("ring-size", strconv.Itoa(cfg.Serve.RingSize))
	}
	setDefault("redact", cfg.Serve.Redact)
	setDefault("redact-patterns", cfg.Serve.RedactPatterns)
}
