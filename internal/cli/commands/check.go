package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"icatcheck/internal/detector"
	"icatcheck/internal/output"
)

type checkOptions struct {
	runTest     string
	minReplicas int
	prefix      string
	format      string
	ignoreFile  string
}

var validTests = strings.Join(detector.DetectorNames(detector.Registry(nil)), ", ")

func addCheckFlags(cmd *cobra.Command, o *checkOptions) {
	f := cmd.Flags()
	f.StringVar(&o.runTest, "run-test", detector.NameAll, "Test to run: "+validTests)
	f.IntVar(&o.minReplicas, "min-replicas", 0, "Minimum number of replicas that a data object must have (default from settings, 1)")
	f.StringVar(&o.prefix, "data-object-prefix", "", "Only check data objects whose logical path starts with this prefix")
	f.StringVar(&o.format, "format", "", "Output format: human or csv (default from settings)")
	f.StringVar(&o.ignoreFile, "ignore-file", "", "Gitignore-style patterns over logical paths of findings to suppress")
}

func newCheckCmd(a *app) *cobra.Command {
	o := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run consistency checks against the catalog",
		Long: `Run the consistency checks against the catalog and report every issue found.

Checks run in this order: ` + validTests + `.

Examples:
  icatcheck check
  icatcheck check --run-test hardlinks
  icatcheck check --min-replicas 2 --data-object-prefix /tempZone/home/research/
  icatcheck check --sqlite icat-snapshot.db --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, o)
		},
	}
	addCheckFlags(cmd, o)
	return cmd
}

// checkConfig merges flags and settings into a detector configuration.
func (a *app) checkConfig(cmd *cobra.Command, o *checkOptions) (detector.Config, error) {
	cfg := detector.DefaultConfig()
	cfg.Verbose = a.opts.verbose
	cfg.DataObjectPrefix = o.prefix
	cfg.Now = time.Now

	cfg.MinReplicas = a.settings.MinReplicas
	if cmd.Flags().Changed("min-replicas") {
		if o.minReplicas < 1 {
			return cfg, fmt.Errorf("--min-replicas must be at least 1, got %d", o.minReplicas)
		}
		cfg.MinReplicas = o.minReplicas
	}

	path := a.settings.IgnoreFile
	if cmd.Flags().Changed("ignore-file") {
		path = o.ignoreFile
		// an explicit file has to exist
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("ignore file: %w", err)
		}
	}
	ign, err := output.LoadIgnore(path)
	if err != nil {
		return cfg, fmt.Errorf("ignore file: %w", err)
	}
	if ign != nil {
		a.log.WithField("path", ign.Source()).Debug("[CLI] ignore patterns loaded")
	}
	cfg.Ignore = ign
	return cfg, nil
}

func (a *app) runCheck(cmd *cobra.Command, o *checkOptions) error {
	ctx := cmd.Context()

	// reject an unknown test before touching the catalog
	if err := detector.NewRunner(detector.Registry(nil), nil).Select(o.runTest); err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}
	cfg, err := a.checkConfig(cmd, o)
	if err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}
	format := o.format
	if format == "" {
		format = a.settings.Format
	}
	sink, err := output.NewSink(format, cmd.OutOrStdout())
	if err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}

	lock, err := a.lock(ctx)
	if err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}
	defer lock.Release()

	db, err := a.openCatalog(ctx)
	if err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}
	defer db.Close()

	runner := detector.NewRunner(detector.Registry(db), sink)
	runner.Log = a.log
	if err := runner.Select(o.runTest); err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}

	res, err := runner.Run(ctx, cfg)
	a.log.WithField("issues_found", res.IssuesFound).Info("[CLI] check finished")
	code := detector.ExitStatus(res.IssuesFound, err)
	if code == detector.ExitClean {
		return nil
	}
	return &exitError{code: code, err: err}
}
