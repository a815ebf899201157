// Command boro runs the BORO lending tracker server and its admin tasks.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/boro/internal/config"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "boro",
		Short: "Track what you lend and borrow among friends",
		Long: `BORO keeps track of the things people lend each other: what is in
whose storage, who borrowed what and until when.

Settings come from BORO_* environment variables; flags override them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringP("db", "d", "", "SQLite database path (env BORO_DB, default boro.sqlite3)")
	f.StringP("log", "l", "", "also write logs to this file (env BORO_LOG)")
	f.String("log-level", "", "debug, info, warn or error (env BORO_LOG_LEVEL, default info)")
	f.String("log-format", "", "text or json (env BORO_LOG_FORMAT, default text)")

	root.AddCommand(newServeCmd(a), newInitCmd(a), newUserCmd(a))
	return root
}

// setup loads the environment, applies flags that were set explicitly and
// starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	strs := map[string]*string{
		"db":         &cfg.DB,
		"log":        &cfg.Log,
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"addr":       &cfg.Addr,
		"state-dir":  &cfg.StateDir,
		"admin-user": &cfg.AdminUser,
	}
	for name, dst := range strs {
		if fl := cmd.Flags().Lookup(name); fl != nil && fl.Changed {
			*dst = fl.Value.String()
		}
	}
	if fl := cmd.Flags().Lookup("allowed-origins"); fl != nil && fl.Changed {
		if cfg.AllowedOrigins, err = cmd.Flags().GetStringSlice("allowed-origins"); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger, closeLog, err := setupLogger(cfg.Log, cfg.LogFormat, level)
	if err != nil {
		return err
	}

	a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
	return nil
}
