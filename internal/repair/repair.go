// Package repair turns path consistency findings into a shell script that
// moves misplaced replicas off consumer resources.
//
// The generator only consumes findings: it runs the hardlinks and
// path_consistency detectors into collectors and reads the structured fields
// of what they report. For every misplaced replica on a resource not served
// by the catalog provider the script trims that replica and replicates the
// object again, which lets iRODS write it at the expected path. Objects
// involved in a hard link are left alone; trimming one of them would remove
// storage the other object still uses.
package repair

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	log "github.com/sirupsen/logrus"

	"icatcheck/internal/detector"
	"icatcheck/internal/output"
)

// DefaultReplResource is the resource irepl targets unless told otherwise.
const DefaultReplResource = "irodsRescRepl"

// Catalog is what the generator reads: the detector surface plus hosts.
type Catalog interface {
	detector.Catalog
	ResourceHosts(ctx context.Context) (map[int64]string, error)
}

// Options controls script generation.
type Options struct {
	// Provider is the host name of the catalog provider. Replicas on
	// resources served by it are never trimmed.
	Provider string
	// ReplResource is passed to irepl -R.
	ReplResource string
	// DataObjectPrefix narrows both detectors.
	DataObjectPrefix string
}

// Summary counts what went into the script.
type Summary struct {
	Repairs int
	Skipped int
}

// Generate writes the repair script for cat to w.
func Generate(ctx context.Context, cat Catalog, opts Options, w io.Writer) (Summary, error) {
	var sum Summary
	if opts.ReplResource == "" {
		opts.ReplResource = DefaultReplResource
	}
	cfg := detector.DefaultConfig()
	cfg.DataObjectPrefix = opts.DataObjectPrefix

	links := output.NewCollector()
	if _, err := detector.NewHardlinks(cat).Run(ctx, cfg, links); err != nil {
		return sum, fmt.Errorf("collecting hard links: %w", err)
	}
	hardlinked := make(map[string]bool)
	for _, f := range links.ByType(detector.NameHardlinks, output.TypeHardlink) {
		hardlinked[f.Value("data_id")] = true
		hardlinked[f.Value("other_data_id")] = true
	}

	paths := output.NewCollector()
	if _, err := detector.NewPathConsistency(cat).Run(ctx, cfg, paths); err != nil {
		return sum, fmt.Errorf("collecting inconsistent paths: %w", err)
	}
	hosts, err := cat.ResourceHosts(ctx)
	if err != nil {
		return sum, err
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# It is recommended to verify that the data objects are correctly stored on the provider before removing\n")
	b.WriteString("# them on the consumer, for example using the irods consistency checker.\n")

	for _, f := range paths.ByType(detector.NamePathConsistency, "") {
		rescID, err := strconv.ParseInt(f.Value("resource_id"), 10, 64)
		if err != nil {
			return sum, fmt.Errorf("path finding without resource id: %w", err)
		}
		if hosts[rescID] == opts.Provider {
			continue
		}
		object := f.Value("object_name")
		if hardlinked[f.Value("data_id")] {
			fmt.Fprintf(&b, "# Not repairing data object %s, because it has a hard link.\n", comment(object))
			sum.Skipped++
			continue
		}
		fmt.Fprintf(&b, "# %s on %s\n", comment(object), comment(f.Value("resource_hierarchy")))
		fmt.Fprintf(&b, "itrim -M -S %s -N 1 %s\n", shellQuote(f.Value("resource_name")), shellQuote(object))
		fmt.Fprintf(&b, "irepl -M -R %s %s\n", shellQuote(opts.ReplResource), shellQuote(object))
		fmt.Fprintf(&b, "ils -L %s\n", shellQuote(object))
		b.WriteString("echo\n")
		sum.Repairs++
	}

	log.WithFields(log.Fields{"repairs": sum.Repairs, "skipped": sum.Skipped}).Info("[Repair] script generated")
	_, err = io.WriteString(w, b.String())
	return sum, err
}

// WriteScript generates the script into name on fs. The file is written to a
// temporary sibling first and renamed into place, so a failed run never
// leaves a truncated script behind.
func WriteScript(ctx context.Context, fs billy.Filesystem, name string, cat Catalog, opts Options) (Summary, error) {
	var buf bytes.Buffer
	sum, err := Generate(ctx, cat, opts, &buf)
	if err != nil {
		return sum, err
	}

	dir := filepath.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return sum, err
	}
	tmp, err := util.TempFile(fs, dir, ".icatcheck-")
	if err != nil {
		return sum, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return sum, err
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return sum, err
	}
	if ch, ok := fs.(billy.Change); ok {
		if err := ch.Chmod(tmpName, 0o755); err != nil && !os.IsPermission(err) {
			fs.Remove(tmpName)
			return sum, err
		}
	}
	if err := fs.Rename(tmpName, name); err != nil {
		fs.Remove(tmpName)
		return sum, err
	}
	return sum, nil
}

// shellQuote quotes s for /bin/sh. Nothing inside single quotes is expanded.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// comment makes s safe inside a shell comment: a newline in a name would
// otherwise end the comment and start a command.
func comment(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '?'
		}
		return r
	}, s)
}
