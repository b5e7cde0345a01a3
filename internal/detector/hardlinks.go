package detector

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"icatcheck/internal/cache"
	"icatcheck/internal/catalog"
	"icatcheck/internal/output"
)

// Hardlinks reports physical paths shared by more than one replica row on the
// same filesystem resource.
//
// The first row seen for a path wins; rows are read ordered by data id so the
// winner is stable across runs. A later row with the same data id is a
// duplicate entry, one with another id is a hard link.
type Hardlinks struct {
	cat Catalog
}

func NewHardlinks(cat Catalog) *Hardlinks {
	return &Hardlinks{cat: cat}
}

func (d *Hardlinks) Name() string { return NameHardlinks }

// collision is a replica row whose physical path was already taken.
type collision struct {
	dataID, other int64
	path          string
}

func (d *Hardlinks) Run(ctx context.Context, cfg Config, sink output.Sink) (bool, error) {
	rep := newReporter(d.Name(), cfg, sink)

	vaults, err := d.cat.ResourceVaultPaths(ctx)
	if err != nil {
		return false, err
	}
	rescNames, err := d.cat.ResourceNames(ctx)
	if err != nil {
		return false, err
	}
	hierarchies, err := d.cat.ResourceHierarchies(ctx)
	if err != nil {
		return false, err
	}
	displayNames := cache.NewNameCache(d.cat.DataObjectDisplayName, 0)
	display := func(id int64) (string, error) {
		name, ok, err := displayNames.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("<data object %d>", id), nil
		}
		return name, nil
	}

	rescIDs := make([]int64, 0, len(vaults))
	for id := range vaults {
		rescIDs = append(rescIDs, id)
	}
	sort.Slice(rescIDs, func(i, j int) bool { return rescIDs[i] < rescIDs[j] })

	for _, rescID := range rescIDs {
		rescName := rescNames[rescID]
		if err := rep.progress("Running hard link test for resource: " + rescName); err != nil {
			return rep.found(), err
		}

		// Names are looked up after the stream is closed: the catalog has a
		// single connection.
		var collisions []collision
		firstSeen := make(map[string]int64)
		filter := catalog.ReplicaFilter{ResourceID: &rescID, Prefix: cfg.DataObjectPrefix, Ordered: true}
		err := d.cat.StreamReplicas(ctx, filter, func(r catalog.Replica) error {
			other, seen := firstSeen[r.PhysicalPath]
			if !seen {
				firstSeen[r.PhysicalPath] = r.DataID
				return nil
			}
			collisions = append(collisions, collision{dataID: r.DataID, other: other, path: r.PhysicalPath})
			return nil
		})
		if err != nil {
			return rep.found(), fmt.Errorf("resource %s: %w", rescName, err)
		}

		for _, c := range collisions {
			f, err := d.finding(c, display, rescName, hierarchies[rescID])
			if err != nil {
				return rep.found(), fmt.Errorf("resource %s: %w", rescName, err)
			}
			if err := rep.emit(f); err != nil {
				return rep.found(), err
			}
		}
	}
	return rep.found(), nil
}

func (d *Hardlinks) finding(c collision, display func(int64) (string, error), rescName, hierarchy string) (output.Finding, error) {
	this, err := display(c.dataID)
	if err != nil {
		return output.Finding{}, err
	}
	if c.other == c.dataID {
		f := output.Finding{Type: output.TypeDuplicateEntry, Subject: this}
		f.Add("data_id", strconv.FormatInt(c.dataID, 10)).
			Add("object_name", this).
			Add("resource_name", rescName).
			Add("resource_hierarchy", hierarchy).
			Add("phy_path", c.path)
		return f, nil
	}

	otherName, err := display(c.other)
	if err != nil {
		return output.Finding{}, err
	}
	f := output.Finding{Type: output.TypeHardlink, Subject: this}
	f.Add("data_id", strconv.FormatInt(c.dataID, 10)).
		Add("other_data_id", strconv.FormatInt(c.other, 10)).
		Add("object1", this).
		Add("object2", otherName).
		Add("resource_name", rescName).
		Add("resource_hierarchy", hierarchy).
		Add("phy_path", c.path)
	return f, nil
}
