// Package commands implements the latin subcommands.
package commands

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/keizerzilla/latin/internal/config"
	"github.com/keizerzilla/latin/internal/monitoring"
)

var loaded = config.DefaultConfig()

// Setup loads the run configuration from path (environment only when path
// is empty) and opens the log streams. Verbosity 1 enables the diag stream,
// 2 or more also enables trace.
func Setup(path string, verbosity int, stderr io.Writer) error {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadConfig(path)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return errors.WithHint(errors.Wrap(err, "load configuration"),
			"see config.example.yaml for the accepted keys")
	}
	loaded = cfg

	w := monitoring.LogWriters{Ops: stderr, JSON: cfg.GetLogFormat() == "json"}
	if verbosity >= 1 {
		w.Diag = stderr
	}
	if verbosity >= 2 {
		w.Trace = stderr
	}
	monitoring.SetLogWriters(w)
	return nil
}

// Config returns the configuration loaded by Setup.
func Config() *config.Config { return loaded }

func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, n := range names {
		if v, _ := cmd.Flags().GetString(n); v == "" {
			return errors.Newf("--%s is required", n)
		}
	}
	return nil
}
