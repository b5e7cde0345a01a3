// Copyright 2024 icatcheck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"icatcheck/internal/catalog"
	"icatcheck/internal/config"
	"icatcheck/internal/detector"
	"icatcheck/internal/util"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// exitError carries a process exit status out of a command. A nil err means
// nothing needs to be printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	verbose    bool
	logLevel   string
	configFile string
	sqlite     string
	dsn        string
	lockFile   string
	lockWait   time.Duration
}

// app is the state of one command line invocation.
type app struct {
	opts     globalOptions
	settings *config.Settings
	log      *log.Entry
	stderr   io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}
	check := &checkOptions{}

	rootCmd := &cobra.Command{
		Use:   "icatcheck",
		Short: "Consistency checks for the iRODS ICAT catalog",
		Long: `Performs a number of sanity checks on the iRODS ICAT database.

Without a subcommand icatcheck runs the check command. The catalog is read
through a read-only connection built from the iRODS server_config.json, a
PostgreSQL DSN or a SQLite snapshot of the catalog.

Exit status is 0 when no issue was found, 2 when at least one issue was
reported and 1 when the run could not complete.`,
		Version:       getVersionString(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, check)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("icatcheck version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Verbose mode: progress messages and debug logging")
	pf.StringVar(&a.opts.logLevel, "log-level", "", "Log level on stderr: error, warn, info, debug (default from settings)")
	pf.StringVar(&a.opts.configFile, "config-file", "", "Location of the iRODS server_config file (default: "+config.DefaultServerConfig+")")
	pf.StringVar(&a.opts.sqlite, "sqlite", "", "Read a SQLite snapshot of the catalog instead of PostgreSQL (env "+config.EnvSQLite+")")
	pf.StringVar(&a.opts.dsn, "dsn", "", "PostgreSQL connection string, bypasses the server config (env "+config.EnvDSN+")")
	pf.StringVar(&a.opts.lockFile, "lock-file", "", "Run lock file (default from settings)")
	pf.DurationVar(&a.opts.lockWait, "lock-wait", 0, "How long to wait for a concurrent run to finish (0 fails at once)")

	addCheckFlags(rootCmd, check)
	rootCmd.AddCommand(newCheckCmd(a), newFixScriptCmd(a))
	return rootCmd
}

// setup loads settings and configures logging.
func (a *app) setup() error {
	// Settings are optional; an unwritable home must not stop a cron run.
	if err := config.InitConfigDir(); err != nil {
		fmt.Fprintf(a.stderr, "Warning: could not initialize config directory: %v\n", err)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	a.settings = settings

	level := a.opts.logLevel
	if level == "" {
		level = settings.LogLevel
	}
	entry, err := setupLogging(a.stderr, level, a.opts.verbose)
	if err != nil {
		return err
	}
	a.log = entry
	return nil
}

// setupLogging sends logrus output to w at the given level. Verbose mode
// raises the level to debug. Every entry carries the run id.
func setupLogging(w io.Writer, level string, verbose bool) (*log.Entry, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose && lvl < log.DebugLevel {
		lvl = log.DebugLevel
	}
	log.SetOutput(w)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetLevel(lvl)
	return log.WithField("run", uuid.NewString()), nil
}

func (a *app) serverConfigPath() string {
	if a.opts.configFile != "" {
		return a.opts.configFile
	}
	return a.settings.ServerConfig
}

// openCatalog connects to the catalog named by flags, environment or
// server config, in that order.
func (a *app) openCatalog(ctx context.Context) (*catalog.DB, error) {
	cfg, err := config.ResolveCatalog(config.Source{
		ServerConfig: a.serverConfigPath(),
		DSN:          a.opts.dsn,
		SQLite:       a.opts.sqlite,
		BusyTimeout:  a.settings.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	db, err := catalog.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.log.WithField("driver", cfg.Driver).Debug("[CLI] catalog opened")
	return db, nil
}

// lock takes the run lock.
func (a *app) lock(ctx context.Context) (*util.RunLock, error) {
	path := a.opts.lockFile
	if path == "" {
		path = a.settings.LockFile
	}
	return util.AcquireRunLock(ctx, path, a.opts.lockWait)
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if err == nil {
		return detector.ExitClean
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exit.err)
		}
		return exit.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return detector.ExitFatal
}
