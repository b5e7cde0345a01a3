package detector

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"icatcheck/internal/common"
	"icatcheck/internal/output"
)

// Exit statuses of a check run.
const (
	ExitClean    = 0
	ExitFatal    = 1
	ExitFindings = 2
)

// Registry returns every detector in execution order.
func Registry(cat Catalog) []Detector {
	return []Detector{
		NewPathConsistency(cat),
		NewHardlinks(cat),
		NewMinReplicas(cat),
		NewRefIntegrity(cat),
		NewTimestamps(cat),
		NewNames(cat),
	}
}

// DetectorNames returns the names accepted by Select, "all" last.
func DetectorNames(detectors []Detector) []string {
	names := make([]string, 0, len(detectors)+1)
	for _, d := range detectors {
		names = append(names, d.Name())
	}
	return append(names, NameAll)
}

// Result summarizes a run.
type Result struct {
	IssuesFound bool
	// Findings counts emitted findings per detector that ran.
	Findings map[string]int
}

// Runner executes detectors one after another.
type Runner struct {
	Detectors []Detector
	Sink      output.Sink
	Log       *log.Entry
}

// NewRunner returns a runner over detectors.
func NewRunner(detectors []Detector, sink output.Sink) *Runner {
	return &Runner{Detectors: detectors, Sink: sink, Log: log.NewEntry(log.StandardLogger())}
}

// Select narrows the runner to the named detector, or keeps all of them for
// "all" and "".
func (r *Runner) Select(name string) error {
	if name == "" || name == NameAll {
		return nil
	}
	for _, d := range r.Detectors {
		if d.Name() == name {
			r.Detectors = []Detector{d}
			return nil
		}
	}
	return fmt.Errorf("%w: %q (valid: %s)", common.ErrUnknownDetector, name, strings.Join(DetectorNames(r.Detectors), ", "))
}

// Run executes the selected detectors in order.
//
// A CatalogUnavailable error stops the run at once. Any other detector error,
// such as an AmbiguousResult, ends only that detector; the remaining
// detectors still run and the first such error is returned at the end.
func (r *Runner) Run(ctx context.Context, cfg Config) (Result, error) {
	res := Result{Findings: make(map[string]int)}
	counter := &countingSink{Sink: r.Sink}
	var firstErr error

	for _, d := range r.Detectors {
		logger := r.Log.WithField("detector", d.Name())
		if cfg.Verbose {
			if err := r.Sink.Message("Starting test " + d.Name()); err != nil {
				return res, err
			}
		}
		logger.Debug("[Runner] detector started")

		counter.n = 0
		found, err := d.Run(ctx, cfg, counter)
		res.Findings[d.Name()] = counter.n
		if found {
			res.IssuesFound = true
		}
		if err != nil {
			logger.WithError(err).Error("[Runner] detector failed")
			if common.CatalogUnavailable.Has(err) {
				return res, err
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", d.Name(), err)
			}
			continue
		}
		logger.WithField("findings", counter.n).Info("[Runner] detector finished")
	}

	if cfg.Verbose {
		msg := "Script finished. No issues detected."
		if res.IssuesFound {
			msg = "Script finished. At least one issue has been detected."
		}
		if err := r.Sink.Message(msg); err != nil {
			return res, err
		}
	}
	return res, firstErr
}

// ExitStatus maps the outcome of a run to the process exit status.
func ExitStatus(issuesFound bool, err error) int {
	switch {
	case err != nil:
		return ExitFatal
	case issuesFound:
		return ExitFindings
	default:
		return ExitClean
	}
}

type countingSink struct {
	output.Sink
	n int
}

func (c *countingSink) Emit(f output.Finding) error {
	c.n++
	return c.Sink.Emit(f)
}
