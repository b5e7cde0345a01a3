package catalog

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"icatcheck/internal/common"
)

// BuggyCharacterClass holds the characters iRODS mishandles in names:
// control bytes 0x01-0x08, 0x0B, 0x0C, 0x0E-0x1F and the backtick.
const BuggyCharacterClass = "`\x01-\x08\x0b\x0c\x0e-\x1f"

var (
	identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	buggyRe = regexp.MustCompile("[" + BuggyCharacterClass + "]")
)

// ValidIdentifier reports whether s may be used as a table or column name.
func ValidIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// HasBuggyCharacters reports whether name contains a character from
// BuggyCharacterClass.
func HasBuggyCharacters(name string) bool {
	return buggyRe.MatchString(name)
}

type condOp int

const (
	opIn condOp = iota
	opNotIn
	opEmpty
	opNonEmpty
	opTrailingSlash
	opBuggyCharacters
	opOrderViolated
	opAfter
)

// Cond is one predicate of a Select. Conds are built only through the
// constructors below so that every identifier they carry can be validated
// before any SQL is produced.
type Cond struct {
	op        condOp
	columns   []string
	refTable  string
	refColumn string
	max       int64
}

// In matches rows whose column value appears in refTable.refColumn.
func In(column, refTable, refColumn string) Cond {
	return Cond{op: opIn, columns: []string{column}, refTable: refTable, refColumn: refColumn}
}

// NotIn matches rows whose column value is absent from refTable.refColumn.
func NotIn(column, refTable, refColumn string) Cond {
	return Cond{op: opNotIn, columns: []string{column}, refTable: refTable, refColumn: refColumn}
}

// Empty matches rows whose column is the empty string or NULL.
func Empty(column string) Cond {
	return Cond{op: opEmpty, columns: []string{column}}
}

// NonEmpty matches rows whose column is set and not the empty string.
func NonEmpty(column string) Cond {
	return Cond{op: opNonEmpty, columns: []string{column}}
}

// TrailingSlash matches names ending in "/" other than "/" itself.
func TrailingSlash(column string) Cond {
	return Cond{op: opTrailingSlash, columns: []string{column}}
}

// BuggyCharacters matches names containing a character of BuggyCharacterClass.
func BuggyCharacters(column string) Cond {
	return Cond{op: opBuggyCharacters, columns: []string{column}}
}

// OrderViolated matches rows where the integer value of first exceeds second.
func OrderViolated(first, second string) Cond {
	return Cond{op: opOrderViolated, columns: []string{first, second}}
}

// After matches rows where any of columns, read as an integer, exceeds max.
func After(max int64, columns ...string) Cond {
	return Cond{op: opAfter, columns: columns, max: max}
}

func (c Cond) identifiers() []string {
	ids := append([]string(nil), c.columns...)
	if c.refTable != "" {
		ids = append(ids, c.refTable, c.refColumn)
	}
	return ids
}

func (c Cond) apply(q *bun.SelectQuery, d dialect.Name) *bun.SelectQuery {
	col := bun.Ident(c.columns[0])
	switch c.op {
	case opIn:
		return q.Where("t.? IN (SELECT ? FROM ?)", col, bun.Ident(c.refColumn), bun.Ident(c.refTable))
	case opNotIn:
		return q.Where("t.? NOT IN (SELECT ? FROM ?)", col, bun.Ident(c.refColumn), bun.Ident(c.refTable))
	case opEmpty:
		return q.Where("(t.? = '' OR t.? IS NULL)", col, col)
	case opNonEmpty:
		return q.Where("t.? <> ''", col)
	case opTrailingSlash:
		return q.Where("t.? <> '/'", col).Where("t.? LIKE '%/'", col)
	case opBuggyCharacters:
		if d == dialect.PG {
			return q.Where("t.? ~ ?", col, "["+BuggyCharacterClass+"]")
		}
		return q.Where("t.? GLOB ?", col, "*["+BuggyCharacterClass+"]*")
	case opOrderViolated:
		return q.Where("CAST(t.? AS BIGINT) > CAST(t.? AS BIGINT)", col, bun.Ident(c.columns[1]))
	case opAfter:
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, name := range c.columns {
				q = q.WhereOr("CAST(t.? AS BIGINT) > ?", bun.Ident(name), c.max)
			}
			return q
		})
	}
	return q
}

// Select describes a projection over one catalog table. The table is always
// aliased "t" so that predicates can qualify its columns.
type Select struct {
	Table   string
	Columns []string
	Where   []Cond
	// Prefix restricts data object rows to those whose logical path
	// (collection name + "/" + data_name) starts with it. Only valid on
	// r_data_main.
	Prefix  string
	OrderBy []string
}

// Validate checks every identifier the query would reference.
func (s Select) Validate() error {
	ids := []string{s.Table}
	ids = append(ids, s.Columns...)
	ids = append(ids, s.OrderBy...)
	for _, c := range s.Where {
		ids = append(ids, c.identifiers()...)
	}
	for _, id := range ids {
		if !ValidIdentifier(id) {
			return fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, id)
		}
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: no columns selected from %s", common.ErrInvalidIdentifier, s.Table)
	}
	if s.Prefix != "" && s.Table != TableDataObjects {
		return fmt.Errorf("logical path prefix is only supported on %s, not %s", TableDataObjects, s.Table)
	}
	return nil
}

func (s Select) build(db *DB) *bun.SelectQuery {
	q := db.NewSelect().TableExpr("? AS t", bun.Ident(s.Table))
	for _, c := range s.Columns {
		q = q.ColumnExpr("t.?", bun.Ident(c))
	}
	name := db.Dialect().Name()
	for _, c := range s.Where {
		q = c.apply(q, name)
	}
	q = wherePrefix(q, "t", s.Prefix)
	for _, c := range s.OrderBy {
		q = q.OrderExpr("t.?", bun.Ident(c))
	}
	return q
}

// wherePrefix adds the logical path prefix filter for a data object table
// aliased as alias. The alias is one of the fixed aliases used in this
// package, never user input. The comparison is an exact, case sensitive
// match on the leading characters; SQLite's LIKE would fold ASCII case.
func wherePrefix(q *bun.SelectQuery, alias, prefix string) *bun.SelectQuery {
	if prefix == "" {
		return q
	}
	return q.Where(
		"substr((SELECT pc.coll_name FROM r_coll_main AS pc WHERE pc.coll_id = ?.coll_id) || '/' || ?.data_name, 1, ?) = ?",
		bun.Safe(alias), bun.Safe(alias), utf8.RuneCountInString(prefix), prefix)
}
