package detector

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"icatcheck/internal/output"
)

// MinReplicas reports data objects with replicas on fewer distinct resources
// than Config.MinReplicas.
type MinReplicas struct {
	cat Catalog
}

func NewMinReplicas(cat Catalog) *MinReplicas {
	return &MinReplicas{cat: cat}
}

func (d *MinReplicas) Name() string { return NameMinReplicas }

func (d *MinReplicas) Run(ctx context.Context, cfg Config, sink output.Sink) (bool, error) {
	rep := newReporter(d.Name(), cfg, sink)

	resources := make(map[int64]map[int64]struct{})
	err := d.cat.StreamReplicaResources(ctx, cfg.DataObjectPrefix, func(dataID, rescID int64) error {
		set, ok := resources[dataID]
		if !ok {
			set = make(map[int64]struct{}, 1)
			resources[dataID] = set
		}
		set[rescID] = struct{}{}
		return nil
	})
	if err != nil {
		return false, err
	}

	var short []int64
	for id, set := range resources {
		if len(set) < cfg.MinReplicas {
			short = append(short, id)
		}
	}
	sort.Slice(short, func(i, j int) bool { return short[i] < short[j] })

	for _, id := range short {
		name, ok, err := d.cat.DataObjectDisplayName(ctx, id)
		if err != nil {
			return rep.found(), err
		}
		if !ok {
			name = fmt.Sprintf("<data object %d>", id)
		}
		f := output.Finding{Subject: name}
		f.Add("data_id", strconv.FormatInt(id, 10)).
			Add("object_name", name).
			Add("number_replicas", strconv.Itoa(len(resources[id]))).
			Add("min_replicas", strconv.Itoa(cfg.MinReplicas))
		if err := rep.emit(f); err != nil {
			return rep.found(), err
		}
	}
	return rep.found(), nil
}
