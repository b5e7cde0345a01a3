package detector

import (
	"context"
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"

	"icatcheck/internal/catalog"
	"icatcheck/internal/common"
	"icatcheck/internal/output"
)

// PathConsistency reports replicas on filesystem resources whose directory
// under the vault does not mirror their collection.
type PathConsistency struct {
	cat Catalog
}

func NewPathConsistency(cat Catalog) *PathConsistency {
	return &PathConsistency{cat: cat}
}

func (d *PathConsistency) Name() string { return NamePathConsistency }

func (d *PathConsistency) Run(ctx context.Context, cfg Config, sink output.Sink) (bool, error) {
	rep := newReporter(d.Name(), cfg, sink)

	vaults, err := d.cat.ResourceVaultPaths(ctx)
	if err != nil {
		return false, err
	}
	rescNames, err := d.cat.ResourceNames(ctx)
	if err != nil {
		return false, err
	}
	collPaths, err := d.cat.CollectionPaths(ctx)
	if err != nil {
		return false, err
	}
	hierarchies, err := d.cat.ResourceHierarchies(ctx)
	if err != nil {
		return false, err
	}

	var skipped int
	filter := catalog.ReplicaFilter{FilesystemOnly: true, Prefix: cfg.DataObjectPrefix, Ordered: true}
	err = d.cat.StreamReplicas(ctx, filter, func(r catalog.Replica) error {
		vault, ok := vaults[r.RescID]
		if !ok {
			skipped++
			return nil
		}
		collPath, ok := collPaths[r.CollID]
		if !ok {
			// reported by ref_integrity
			skipped++
			return nil
		}
		objectName := collPath + "/" + r.DataName

		m, differs, err := Reconcile(r, vault, collPath)
		if errors.Is(err, common.ErrMalformedPath) {
			f := output.Finding{Type: output.TypeOutsideVault, Subject: objectName}
			f.Add("resource_id", strconv.FormatInt(r.RescID, 10)).
				Add("resource_name", rescNames[r.RescID]).
			Add("resource_hierarchy", hierarchies[r.RescID]).
				Add("phy_path", r.PhysicalPath).
				Add("vault_path", vault).
				Add("data_id", strconv.FormatInt(r.DataID, 10)).
				Add("object_name", objectName)
			return rep.emit(f)
		}
		if err != nil || !differs {
			return err
		}
		f := output.Finding{Subject: objectName}
		f.Add("resource_id", strconv.FormatInt(r.RescID, 10)).
			Add("resource_name", rescNames[r.RescID]).
			Add("resource_hierarchy", hierarchies[r.RescID]).
			Add("phy_path", r.PhysicalPath).
			Add("data_id", strconv.FormatInt(r.DataID, 10)).
			Add("object_name", objectName).
			Add("coll_name", m.Expected).
			Add("dir_name", m.Actual)
		return rep.emit(f)
	})
	if err != nil {
		return rep.found(), err
	}
	if skipped > 0 {
		log.WithField("replicas", skipped).Debug("[Detector] path_consistency skipped replicas with unknown collection or resource")
	}
	return rep.found(), nil
}
