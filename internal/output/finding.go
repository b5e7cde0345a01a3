// Package output defines the finding contract shared by all detectors and the
// sinks that render findings.
//
// Detectors never format text themselves: they build a Finding and hand it to
// a Sink. The human and CSV sinks are the two renderings offered on the command
// line; the Collector keeps findings in memory for tests and for downstream
// consumers such as the repair script generator.
package output

import "sort"

// Finding sub-kinds. Checks with a single kind leave Type empty.
const (
	TypeDuplicateEntry  = "duplicate_dataobject_entry"
	TypeHardlink        = "hardlink"
	TypeEmptyName       = "empty_name"
	TypeBuggyCharacters = "buggy_characters"
	TypeTrailingSlash   = "trailing_slash"
	TypeOrder           = "order"
	TypeFuture          = "future"
	TypeOutsideVault    = "outside_vault"
)

// Field is one reported column.
type Field struct {
	Column string
	Value  string
}

// Finding is one detected consistency violation.
type Finding struct {
	Check     string // detector name
	Type      string // sub-kind discriminator
	CheckName string // human label of the rule or table
	Subject   string // logical path of the affected object, if known
	Fields    []Field
}

// Get returns the value of column and whether it was present.
func (f Finding) Get(column string) (string, bool) {
	for _, fld := range f.Fields {
		if fld.Column == column {
			return fld.Value, true
		}
	}
	return "", false
}

// Value returns the value of column or "" when absent.
func (f Finding) Value(column string) string {
	v, _ := f.Get(column)
	return v
}

// Add appends a field and returns the finding for chaining.
func (f *Finding) Add(column, value string) *Finding {
	f.Fields = append(f.Fields, Field{Column: column, Value: value})
	return f
}

// SortedFields returns a copy of the fields ordered by column name.
func (f Finding) SortedFields() []Field {
	out := make([]Field, len(f.Fields))
	copy(out, f.Fields)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out
}

// Sink consumes findings and progress messages.
type Sink interface {
	Emit(f Finding) error
	Message(text string) error
}
