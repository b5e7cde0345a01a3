package detector

import (
	"context"
	"fmt"
	"strconv"

	"icatcheck/internal/cache"
	"icatcheck/internal/catalog"
	"icatcheck/internal/output"
)

// ColumnCollectionName replaces coll_id in name findings.
const ColumnCollectionName = "Collection name"

// NameTable is one table whose name column is checked.
type NameTable struct {
	Label   string
	Table   string
	Column  string
	Columns []string
	// Paths enables the trailing slash check.
	Paths bool
}

// NameTables returns the tables checked by the name detector.
func NameTables() []NameTable {
	return []NameTable{
		{"collection", catalog.TableCollections, "coll_name", []string{"coll_id", "coll_name"}, true},
		{"data object", catalog.TableDataObjects, "data_name", []string{"data_id", "data_name", "coll_id"}, true},
		{"resource", catalog.TableResources, "resc_name", []string{"resc_id", "resc_name"}, false},
		{"user", catalog.TableUsers, "user_name", []string{"user_id", "user_name"}, false},
		{"zone", catalog.TableZones, "zone_name", []string{"zone_id", "zone_name"}, false},
	}
}

// Names reports empty names, names ending in a slash and names holding
// characters iRODS mishandles.
type Names struct {
	cat    Catalog
	tables []NameTable
}

func NewNames(cat Catalog) *Names {
	return &Names{cat: cat, tables: NameTables()}
}

func (d *Names) Name() string { return NameNames }

func (d *Names) Run(ctx context.Context, cfg Config, sink output.Sink) (bool, error) {
	rep := newReporter(d.Name(), cfg, sink)
	collNames := cache.NewNameCache(d.cat.CollectionName, 0)

	for _, tbl := range d.tables {
		checks := []struct {
			typ   string
			label string
			cond  catalog.Cond
		}{
			{output.TypeEmptyName, "empty name", catalog.Empty(tbl.Column)},
			{output.TypeTrailingSlash, "trailing slash", catalog.TrailingSlash(tbl.Column)},
			{output.TypeBuggyCharacters, "problematic character name", catalog.BuggyCharacters(tbl.Column)},
		}
		for _, c := range checks {
			if c.typ == output.TypeTrailingSlash && !tbl.Paths {
				continue
			}
			if err := rep.progress(fmt.Sprintf("Running %s test for: %s", c.label, tbl.Label)); err != nil {
				return rep.found(), err
			}
			s := catalog.Select{
				Table:   tbl.Table,
				Columns: tbl.Columns,
				Where:   []catalog.Cond{c.cond},
				OrderBy: tbl.Columns,
			}
			if tbl.Table == catalog.TableDataObjects {
				s.Prefix = cfg.DataObjectPrefix
			}
			// The catalog holds a single connection, so collection names
			// are resolved once the stream is closed.
			var rows []catalog.Row
			err := d.cat.StreamRows(ctx, s, func(row catalog.Row) error {
				rows = append(rows, row)
				return nil
			})
			if err != nil {
				return rep.found(), fmt.Errorf("%s %s check: %w", tbl.Label, c.typ, err)
			}
			for _, row := range rows {
				f, err := d.finding(ctx, collNames, tbl, row, c.typ)
				if err != nil {
					return rep.found(), fmt.Errorf("%s %s check: %w", tbl.Label, c.typ, err)
				}
				if err := rep.emit(f); err != nil {
					return rep.found(), err
				}
			}
		}
	}
	return rep.found(), nil
}

// finding builds the report for row, substituting the owning collection's
// name for coll_id. An unresolvable coll_id is kept as is.
func (d *Names) finding(ctx context.Context, collNames *cache.NameCache, tbl NameTable, row catalog.Row, typ string) (output.Finding, error) {
	f := output.Finding{Type: typ, CheckName: tbl.Label}
	var collName string
	for i, col := range row.Columns {
		value := row.Values[i]
		if col != "coll_id" {
			f.Add(col, value)
			continue
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			f.Add(col, value)
			continue
		}
		name, ok, err := collNames.Get(ctx, id)
		if err != nil {
			return f, err
		}
		if !ok {
			f.Add(col, value)
			continue
		}
		collName = name
		f.Add(ColumnCollectionName, name)
	}

	switch tbl.Table {
	case catalog.TableCollections:
		f.Subject = row.Get("coll_name")
	case catalog.TableDataObjects:
		if collName != "" {
			f.Subject = collName + "/" + row.Get("data_name")
		}
	}
	return f, nil
}
