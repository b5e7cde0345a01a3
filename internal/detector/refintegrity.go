package detector

import (
	"context"
	"fmt"

	"icatcheck/internal/catalog"
	"icatcheck/internal/output"
)

// RefRule describes one referential integrity rule: rows of Table matching
// every condition of Where are violations, reported with Columns.
//
// A rule with Parent set is evaluated in Go instead: rows whose Parent column
// is non-empty are read and the value must parse as an existing resource id.
type RefRule struct {
	Name    string
	Table   string
	Columns []string
	Where   []catalog.Cond
	Parent  string
}

func (r RefRule) selection() catalog.Select {
	s := catalog.Select{Table: r.Table, Columns: r.Columns, Where: r.Where, OrderBy: r.Columns}
	if r.Parent != "" {
		s.Columns = append(append([]string(nil), r.Columns...), r.Parent)
		s.Where = []catalog.Cond{catalog.NonEmpty(r.Parent)}
		s.OrderBy = s.Columns
	}
	return s
}

// RefRules returns the referential integrity rules in report order.
func RefRules() []RefRule {
	const (
		coll   = catalog.TableCollections
		data   = catalog.TableDataObjects
		resc   = catalog.TableResources
		user   = catalog.TableUsers
		zone   = catalog.TableZones
		access = catalog.TableAccess
		metamp = catalog.TableMetaMap
		meta   = catalog.TableMeta
		quota  = catalog.TableQuotas
		usage  = catalog.TableQuotaUsage
		passwd = catalog.TablePasswords
	)
	return []RefRule{
		{
			Name:    "collection and data object have same id",
			Table:   coll,
			Columns: []string{"coll_id"},
			Where:   []catalog.Cond{catalog.In("coll_id", data, "data_id")},
		},
		{
			Name:    "parent of collection does not exist",
			Table:   coll,
			Columns: []string{"coll_name"},
			Where:   []catalog.Cond{catalog.NotIn("parent_coll_name", coll, "coll_name")},
		},
		{
			Name:    "collection of data object does not exist",
			Table:   data,
			Columns: []string{"coll_id", "data_id", "data_name"},
			Where:   []catalog.Cond{catalog.NotIn("coll_id", coll, "coll_id")},
		},
		{
			Name:    "resource of data object does not exist",
			Table:   data,
			Columns: []string{"coll_id", "data_id", "data_name"},
			Where:   []catalog.Cond{catalog.NotIn("resc_id", resc, "resc_id")},
		},
		{
			Name:    "object of object access does not exist",
			Table:   access,
			Columns: []string{"object_id", "user_id"},
			Where: []catalog.Cond{
				catalog.NotIn("object_id", coll, "coll_id"),
				catalog.NotIn("object_id", data, "data_id"),
			},
		},
		{
			Name:    "user of object access does not exist",
			Table:   access,
			Columns: []string{"object_id", "user_id"},
			Where:   []catalog.Cond{catalog.NotIn("user_id", user, "user_id")},
		},
		{
			Name:    "metamap refers to nonexistent object",
			Table:   metamp,
			Columns: []string{"object_id", "meta_id"},
			Where: []catalog.Cond{
				catalog.NotIn("object_id", coll, "coll_id"),
				catalog.NotIn("object_id", data, "data_id"),
				catalog.NotIn("object_id", user, "user_id"),
				catalog.NotIn("object_id", resc, "resc_id"),
			},
		},
		{
			Name:    "metamap refers to nonexistent metadata entry",
			Table:   metamp,
			Columns: []string{"object_id", "meta_id"},
			Where:   []catalog.Cond{catalog.NotIn("meta_id", meta, "meta_id")},
		},
		{
			Name:    "main quota table refers to nonexistent user",
			Table:   quota,
			Columns: []string{"user_id", "resc_id"},
			Where:   []catalog.Cond{catalog.NotIn("user_id", user, "user_id")},
		},
		{
			Name:    "main quota table refers to nonexistent resource",
			Table:   quota,
			Columns: []string{"user_id", "resc_id"},
			Where:   []catalog.Cond{catalog.NotIn("resc_id", resc, "resc_id")},
		},
		{
			Name:    "quota usage table refers to nonexistent user",
			Table:   usage,
			Columns: []string{"user_id", "resc_id"},
			Where:   []catalog.Cond{catalog.NotIn("user_id", user, "user_id")},
		},
		{
			Name:    "quota usage table refers to nonexistent resource",
			Table:   usage,
			Columns: []string{"user_id", "resc_id"},
			Where:   []catalog.Cond{catalog.NotIn("resc_id", resc, "resc_id")},
		},
		{
			Name:    "resource refers to nonexistent parent resource",
			Table:   resc,
			Columns: []string{"resc_name"},
			Parent:  "resc_parent",
		},
		{
			Name:    "user refers to nonexistent zone name",
			Table:   user,
			Columns: []string{"user_id", "zone_name"},
			Where:   []catalog.Cond{catalog.NotIn("zone_name", zone, "zone_name")},
		},
		{
			Name:    "user password table refers to nonexistent user",
			Table:   passwd,
			Columns: []string{"user_id"},
			Where:   []catalog.Cond{catalog.NotIn("user_id", user, "user_id")},
		},
	}
}

// RefIntegrity reports rows whose foreign keys do not resolve.
type RefIntegrity struct {
	cat   Catalog
	rules []RefRule
}

// NewRefIntegrity returns the detector with the default rule set.
func NewRefIntegrity(cat Catalog) *RefIntegrity {
	return &RefIntegrity{cat: cat, rules: RefRules()}
}

func (d *RefIntegrity) Name() string { return NameRefIntegrity }

func (d *RefIntegrity) Run(ctx context.Context, cfg Config, sink output.Sink) (bool, error) {
	rep := newReporter(d.Name(), cfg, sink)

	var rescIDs map[int64]struct{}
	for _, rule := range d.rules {
		if err := rep.progress("Running referential integrity test: " + rule.Name); err != nil {
			return rep.found(), err
		}
		if rule.Parent != "" && rescIDs == nil {
			ids, err := d.cat.ResourceIDs(ctx)
			if err != nil {
				return rep.found(), err
			}
			rescIDs = ids
		}

		err := d.cat.StreamRows(ctx, rule.selection(), func(row catalog.Row) error {
			if rule.Parent != "" {
				id, ok := catalog.ParseParent(row.Get(rule.Parent))
				if ok {
					if _, exists := rescIDs[id]; exists {
						return nil
					}
				}
			}
			return rep.emit(rowFinding(row, "", rule.Name))
		})
		if err != nil {
			return rep.found(), fmt.Errorf("rule %q: %w", rule.Name, err)
		}
	}
	return rep.found(), nil
}

// rowFinding turns a streamed row into a finding carrying every column.
func rowFinding(row catalog.Row, typ, checkName string) output.Finding {
	f := output.Finding{Type: typ, CheckName: checkName}
	for i, c := range row.Columns {
		f.Add(c, row.Values[i])
	}
	return f
}
