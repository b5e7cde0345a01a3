package detector

import (
	"context"
	"fmt"

	"icatcheck/internal/catalog"
	"icatcheck/internal/output"
)

// TimestampTable is one table checked for create_ts/modify_ts sanity.
type TimestampTable struct {
	Name    string
	Table   string
	Columns []string
}

// TimestampTables returns the tables checked by the timestamp detector.
func TimestampTables() []TimestampTable {
	return []TimestampTable{
		{"data object", catalog.TableDataObjects, []string{"coll_id", "data_name", "create_ts", "modify_ts"}},
		{"collection object", catalog.TableCollections, []string{"coll_id", "coll_name", "create_ts", "modify_ts"}},
		{"object access", catalog.TableAccess, []string{"user_id", "object_id", "create_ts", "modify_ts"}},
		{"metadata map", catalog.TableMetaMap, []string{"meta_id", "object_id", "create_ts", "modify_ts"}},
		{"resource", catalog.TableResources, []string{"resc_name", "create_ts", "modify_ts"}},
		{"rule", catalog.TableRules, []string{"rule_id", "create_ts", "modify_ts"}},
		{"zone", catalog.TableZones, []string{"zone_name", "create_ts", "modify_ts"}},
	}
}

// Timestamps reports rows modified before they were created and rows with
// timestamps in the future.
type Timestamps struct {
	cat    Catalog
	tables []TimestampTable
}

func NewTimestamps(cat Catalog) *Timestamps {
	return &Timestamps{cat: cat, tables: TimestampTables()}
}

func (d *Timestamps) Name() string { return NameTimestamps }

func (d *Timestamps) Run(ctx context.Context, cfg Config, sink output.Sink) (bool, error) {
	rep := newReporter(d.Name(), cfg, sink)
	// One second of slack for rows written while the check starts
	maxTs := cfg.now().Unix() + 1

	for _, tbl := range d.tables {
		if err := rep.progress("Running timestamp test for: " + tbl.Name); err != nil {
			return rep.found(), err
		}
		checks := []struct {
			typ  string
			cond catalog.Cond
		}{
			{output.TypeOrder, catalog.OrderViolated("create_ts", "modify_ts")},
			{output.TypeFuture, catalog.After(maxTs, "create_ts", "modify_ts")},
		}
		for _, c := range checks {
			s := catalog.Select{Table: tbl.Table, Columns: tbl.Columns, Where: []catalog.Cond{c.cond}, OrderBy: tbl.Columns}
			err := d.cat.StreamRows(ctx, s, func(row catalog.Row) error {
				f := rowFinding(row, c.typ, tbl.Name)
				if tbl.Table == catalog.TableCollections {
					f.Subject = row.Get("coll_name")
				}
				return rep.emit(f)
			})
			if err != nil {
				return rep.found(), fmt.Errorf("%s %s check: %w", tbl.Name, c.typ, err)
			}
		}
	}
	return rep.found(), nil
}
