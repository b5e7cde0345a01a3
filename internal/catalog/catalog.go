package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"icatcheck/internal/common"
)

// --- Lookups ---
//
// Lookups return small id-keyed maps that detectors build once per run.
// An empty catalog yields empty maps, never an error.

// ResourceVaultPaths returns resc_id → resc_def_path for filesystem-backed resources.
func (db *DB) ResourceVaultPaths(ctx context.Context) (map[int64]string, error) {
	var rescs []ResourceModel
	err := db.NewSelect().
		Model(&rescs).
		Column("resc_id", "resc_def_path").
		Where("resc_type_name IN (?)", bun.In(FilesystemResourceTypes)).
		Scan(ctx)
	if err != nil {
		return nil, common.CatalogUnavailable.Wrap(err)
	}
	result := make(map[int64]string, len(rescs))
	for _, r := range rescs {
		result[r.RescID] = r.RescDefPath
	}
	return result, nil
}

// ResourceNames returns resc_id → resc_name for all resources.
func (db *DB) ResourceNames(ctx context.Context) (map[int64]string, error) {
	rescs, err := db.allResources(ctx, "resc_id", "resc_name")
	if err != nil {
		return nil, err
	}
	result := make(map[int64]string, len(rescs))
	for _, r := range rescs {
		result[r.RescID] = r.RescName
	}
	return result, nil
}

// ResourceHosts returns resc_id → resc_net for all resources.
func (db *DB) ResourceHosts(ctx context.Context) (map[int64]string, error) {
	rescs, err := db.allResources(ctx, "resc_id", "resc_net")
	if err != nil {
		return nil, err
	}
	result := make(map[int64]string, len(rescs))
	for _, r := range rescs {
		result[r.RescID] = r.RescNet
	}
	return result, nil
}

// ResourceIDs returns the set of all resource ids.
func (db *DB) ResourceIDs(ctx context.Context) (map[int64]struct{}, error) {
	rescs, err := db.allResources(ctx, "resc_id")
	if err != nil {
		return nil, err
	}
	result := make(map[int64]struct{}, len(rescs))
	for _, r := range rescs {
		result[r.RescID] = struct{}{}
	}
	return result, nil
}

// ResourceHierarchies returns resc_id → "root;...;leaf" built from the
// resc_parent chain. Unparseable or dangling parents end the chain; the
// referential integrity check reports those separately.
func (db *DB) ResourceHierarchies(ctx context.Context) (map[int64]string, error) {
	rescs, err := db.allResources(ctx, "resc_id", "resc_name", "resc_parent")
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]ResourceModel, len(rescs))
	for _, r := range rescs {
		byID[r.RescID] = r
	}
	result := make(map[int64]string, len(rescs))
	for _, r := range rescs {
		chain := []string{r.RescName}
		seen := map[int64]bool{r.RescID: true}
		cur := r
		for {
			parentID, ok := ParseParent(cur.RescParent)
			if !ok || seen[parentID] {
				break
			}
			parent, exists := byID[parentID]
			if !exists {
				break
			}
			seen[parentID] = true
			chain = append([]string{parent.RescName}, chain...)
			cur = parent
		}
		result[r.RescID] = strings.Join(chain, ";")
	}
	return result, nil
}

func (db *DB) allResources(ctx context.Context, columns ...string) ([]ResourceModel, error) {
	var rescs []ResourceModel
	if err := db.NewSelect().Model(&rescs).Column(columns...).Scan(ctx); err != nil {
		return nil, common.CatalogUnavailable.Wrap(err)
	}
	return rescs, nil
}

// ParseParent interprets a resc_parent value. The second result is false for
// the empty string (root resource) and for anything that is not an id.
func ParseParent(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// CollectionPaths returns coll_id → coll_name for all collections.
// The rows are streamed to avoid holding two copies of large namespaces.
func (db *DB) CollectionPaths(ctx context.Context) (map[int64]string, error) {
	rows, err := db.NewSelect().
		Model((*CollectionModel)(nil)).
		Column("coll_id", "coll_name").
		Rows(ctx)
	if err != nil {
		return nil, common.CatalogUnavailable.Wrap(err)
	}
	defer rows.Close()

	result := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, common.CatalogUnavailable.Wrap(err)
		}
		result[id] = name.String
	}
	if err := rows.Err(); err != nil {
		return nil, common.CatalogUnavailable.Wrap(err)
	}
	return result, nil
}

// CollectionName returns the name of collection id. The bool is false when no
// such collection exists. More than one match is an AmbiguousResult.
func (db *DB) CollectionName(ctx context.Context, id int64) (string, bool, error) {
	var names []string
	err := db.NewSelect().
		Model((*CollectionModel)(nil)).
		Column("coll_name").
		Where("coll_id = ?", id).
		Limit(2).
		Scan(ctx, &names)
	if err != nil {
		return "", false, common.CatalogUnavailable.Wrap(err)
	}
	switch len(names) {
	case 0:
		return "", false, nil
	case 1:
		return names[0], true, nil
	default:
		return "", false, common.AmbiguousResult.New("collection id %d has more than one name", id)
	}
}

// DataObjectDisplayName returns "<collection>/<data_name>" for data object id,
// resolved from its lowest numbered replica. Replicas share the name, so the
// choice only matters for corrupt rows. The bool is false when no replica exists.
func (db *DB) DataObjectDisplayName(ctx context.Context, id int64) (string, bool, error) {
	var replicas []DataObjectModel
	err := db.NewSelect().
		Model(&replicas).
		Column("coll_id", "data_name").
		Where("data_id = ?", id).
		OrderExpr("data_repl_num").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return "", false, common.CatalogUnavailable.Wrap(err)
	}
	if len(replicas) == 0 {
		return "", false, nil
	}
	r := replicas[0]
	collName, ok, err := db.CollectionName(ctx, r.CollID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		log.WithFields(log.Fields{"data_id": id, "coll_id": r.CollID}).Debug("[Catalog] data object refers to missing collection")
		return fmt.Sprintf("<collection %d>/%s", r.CollID, r.DataName), true, nil
	}
	return collName + "/" + r.DataName, true, nil
}
