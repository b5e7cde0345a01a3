package catalog

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"icatcheck/internal/common"
)

// NullValue is how a SQL NULL is rendered in a Row.
const NullValue = "NULL"

// Row is one result row of StreamRows. Values are the text rendering of each
// column in Columns order.
type Row struct {
	Columns []string
	Values  []string
}

// Get returns the value of column, or "" when the row has no such column.
func (r Row) Get(column string) string {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i]
		}
	}
	return ""
}

// StreamRows runs s and calls fn for every row in catalog order. An error
// returned by fn stops the stream and is returned unchanged.
func (db *DB) StreamRows(ctx context.Context, s Select, fn func(Row) error) error {
	if err := s.Validate(); err != nil {
		return err
	}
	rows, err := s.build(db).Rows(ctx)
	if err != nil {
		return common.CatalogUnavailable.Wrap(err)
	}
	defer rows.Close()

	scan := make([]sql.NullString, len(s.Columns))
	dest := make([]any, len(scan))
	for i := range scan {
		dest[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return common.CatalogUnavailable.Wrap(err)
		}
		row := Row{Columns: s.Columns, Values: make([]string, len(scan))}
		for i, v := range scan {
			if v.Valid {
				row.Values[i] = v.String
			} else {
				row.Values[i] = NullValue
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return common.CatalogUnavailable.Wrap(err)
	}
	return nil
}

// Replica is one r_data_main row as seen by the path checks.
type Replica struct {
	DataID       int64
	CollID       int64
	RescID       int64
	DataName     string
	PhysicalPath string
}

// ReplicaFilter narrows StreamReplicas.
type ReplicaFilter struct {
	// ResourceID restricts to replicas on one resource.
	ResourceID *int64
	// FilesystemOnly restricts to replicas on resources of a
	// FilesystemResourceTypes type.
	FilesystemOnly bool
	// Prefix restricts to data objects whose logical path starts with it.
	Prefix string
	// Ordered sorts by data_id then replica number.
	Ordered bool
}

// StreamReplicas calls fn for every replica row matching f.
func (db *DB) StreamReplicas(ctx context.Context, f ReplicaFilter, fn func(Replica) error) error {
	q := db.NewSelect().
		TableExpr("r_data_main AS d").
		ColumnExpr("d.data_id, d.coll_id, d.resc_id, d.data_name, d.data_path")
	if f.FilesystemOnly {
		q = q.Join("JOIN r_resc_main AS r ON r.resc_id = d.resc_id").
			Where("r.resc_type_name IN (?)", bun.In(FilesystemResourceTypes))
	}
	if f.ResourceID != nil {
		q = q.Where("d.resc_id = ?", *f.ResourceID)
	}
	q = wherePrefix(q, "d", f.Prefix)
	if f.Ordered {
		q = q.OrderExpr("d.data_id, d.data_repl_num")
	}

	rows, err := q.Rows(ctx)
	if err != nil {
		return common.CatalogUnavailable.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Replica
		var name, path sql.NullString
		if err := rows.Scan(&r.DataID, &r.CollID, &r.RescID, &name, &path); err != nil {
			return common.CatalogUnavailable.Wrap(err)
		}
		r.DataName = name.String
		r.PhysicalPath = path.String
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return common.CatalogUnavailable.Wrap(err)
	}
	return nil
}

// StreamReplicaResources calls fn with (data_id, resc_id) for every replica
// whose logical path starts with prefix (all replicas when prefix is empty).
func (db *DB) StreamReplicaResources(ctx context.Context, prefix string, fn func(dataID, rescID int64) error) error {
	q := db.NewSelect().
		TableExpr("r_data_main AS d").
		ColumnExpr("d.data_id, d.resc_id")
	q = wherePrefix(q, "d", prefix)

	rows, err := q.Rows(ctx)
	if err != nil {
		return common.CatalogUnavailable.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var dataID, rescID int64
		if err := rows.Scan(&dataID, &rescID); err != nil {
			return common.CatalogUnavailable.Wrap(err)
		}
		if err := fn(dataID, rescID); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return common.CatalogUnavailable.Wrap(err)
	}
	return nil
}
