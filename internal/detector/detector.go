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

// Package detector holds the consistency checks run against an ICAT catalog.
//
// Every check implements Detector. A detector reads the catalog through the
// Catalog interface, reports each violation as an output.Finding and returns
// whether it reported anything. Findings are data: a detector only returns an
// error when it could not finish reading the catalog.
//
// The Runner executes a selection of detectors in registry order against one
// catalog connection. Nothing runs concurrently.
package detector

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"icatcheck/internal/catalog"
	"icatcheck/internal/output"
)

// Detector names, in registry order.
const (
	NamePathConsistency = "path_consistency"
	NameHardlinks       = "hardlinks"
	NameMinReplicas     = "minreplicas"
	NameRefIntegrity    = "ref_integrity"
	NameTimestamps      = "timestamps"
	NameNames           = "names"

	// NameAll selects every detector.
	NameAll = "all"
)

// Detector is one consistency check.
type Detector interface {
	// Name is the stable identifier used for selection and to tag findings.
	Name() string
	// Run executes the check and reports whether at least one finding was
	// emitted. Finding an issue is never an error.
	Run(ctx context.Context, cfg Config, sink output.Sink) (bool, error)
}

// Config is shared by all detectors of one run.
type Config struct {
	Verbose bool
	// DataObjectPrefix restricts data object checks to objects whose logical
	// path starts with it.
	DataObjectPrefix string
	MinReplicas      int
	// Now is read once per timestamp run. Defaults to time.Now.
	Now func() time.Time
	// Ignore suppresses matching findings. May be nil.
	Ignore *output.Ignore
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{MinReplicas: 1, Now: time.Now}
}

func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Catalog is the read surface the detectors need. *catalog.DB implements it;
// tests may substitute a fake.
type Catalog interface {
	ResourceVaultPaths(ctx context.Context) (map[int64]string, error)
	ResourceNames(ctx context.Context) (map[int64]string, error)
	ResourceIDs(ctx context.Context) (map[int64]struct{}, error)
	// ResourceHierarchies maps resc_id to "root;...;leaf".
	ResourceHierarchies(ctx context.Context) (map[int64]string, error)
	CollectionPaths(ctx context.Context) (map[int64]string, error)
	CollectionName(ctx context.Context, id int64) (string, bool, error)
	DataObjectDisplayName(ctx context.Context, id int64) (string, bool, error)
	StreamRows(ctx context.Context, s catalog.Select, fn func(catalog.Row) error) error
	StreamReplicas(ctx context.Context, f catalog.ReplicaFilter, fn func(catalog.Replica) error) error
	StreamReplicaResources(ctx context.Context, prefix string, fn func(dataID, rescID int64) error) error
}

var _ Catalog = (*catalog.DB)(nil)

// reporter tags findings with the detector name, applies the ignore list and
// counts what reached the sink.
type reporter struct {
	check   string
	cfg     Config
	sink    output.Sink
	emitted int
	ignored int
}

func newReporter(check string, cfg Config, sink output.Sink) *reporter {
	return &reporter{check: check, cfg: cfg, sink: sink}
}

func (r *reporter) emit(f output.Finding) error {
	f.Check = r.check
	if r.cfg.Ignore.Match(f) {
		r.ignored++
		log.WithFields(log.Fields{
			"check":   r.check,
			"type":    f.Type,
			"subject": f.Subject,
			"source":  r.cfg.Ignore.Source(),
		}).Debug("[Detector] finding suppressed")
		return nil
	}
	r.emitted++
	return r.sink.Emit(f)
}

// progress forwards a message to the sink in verbose mode.
func (r *reporter) progress(text string) error {
	if !r.cfg.Verbose {
		return nil
	}
	return r.sink.Message(text)
}

func (r *reporter) found() bool {
	return r.emitted > 0
}
