package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"icatcheck/internal/catalog"
	"icatcheck/internal/config"
	"icatcheck/internal/detector"
	"icatcheck/internal/repair"
)

type fixScriptOptions struct {
	provider     string
	replResource string
	prefix       string
	output       string
}

func newFixScriptCmd(a *app) *cobra.Command {
	o := &fixScriptOptions{}
	cmd := &cobra.Command{
		Use:   "fix-script",
		Short: "Generate a script repairing replicas with inconsistent paths",
		Long: `Generate a shell script that repairs data objects with a replica on a consumer
resource whose physical path does not match its logical path, except when the
data object has a hard link.

For every such replica the script trims it and replicates the object again so
that iRODS writes it at the expected path. Replicas on resources served by the
catalog provider are left alone. The provider is read from icat_host in the
server config unless --provider is given.

Examples:
  icatcheck fix-script > fix.sh
  icatcheck fix-script --provider icat.example.org --output /var/lib/icatcheck/fix.sh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFixScript(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.provider, "provider", "", "Host name of the catalog provider (default: icat_host from the server config)")
	f.StringVar(&o.replResource, "repl-resource", "", "Resource passed to irepl -R (default from settings, "+repair.DefaultReplResource+")")
	f.StringVar(&o.prefix, "data-object-prefix", "", "Only consider data objects whose logical path starts with this prefix")
	f.StringVar(&o.output, "output", "", "Write the script to this file instead of stdout")
	return cmd
}

// providerHost returns the catalog provider host: the flag, or icat_host
// from the server config.
func (a *app) providerHost(o *fixScriptOptions) (string, error) {
	if o.provider != "" {
		return o.provider, nil
	}
	sc, err := config.ReadServerConfig(a.serverConfigPath())
	if err != nil {
		return "", fmt.Errorf("provider host unknown, pass --provider: %w", err)
	}
	if sc.ProviderHost == "" {
		return "", fmt.Errorf("server config %s names no catalog provider, pass --provider", a.serverConfigPath())
	}
	return sc.ProviderHost, nil
}

func (a *app) runFixScript(cmd *cobra.Command, o *fixScriptOptions) error {
	ctx := cmd.Context()

	provider, err := a.providerHost(o)
	if err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}
	opts := repair.Options{
		Provider:         provider,
		ReplResource:     o.replResource,
		DataObjectPrefix: o.prefix,
	}
	if opts.ReplResource == "" {
		opts.ReplResource = a.settings.ReplResource
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

	sum, err := a.writeScript(ctx, cmd, db, opts, o.output)
	if err != nil {
		return &exitError{code: detector.ExitFatal, err: err}
	}
	a.log.WithField("provider", provider).WithField("repairs", sum.Repairs).Info("[CLI] fix script written")
	return nil
}

func (a *app) writeScript(ctx context.Context, cmd *cobra.Command, db *catalog.DB, opts repair.Options, output string) (repair.Summary, error) {
	if output == "" {
		return repair.Generate(ctx, db, opts, cmd.OutOrStdout())
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return repair.Summary{}, fmt.Errorf("failed to resolve path: %w", err)
	}
	fs := osfs.New(filepath.Dir(abs))
	return repair.WriteScript(ctx, fs, filepath.Base(abs), db, opts)
}
