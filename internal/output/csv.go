package output

import (
	"encoding/csv"
	"io"
)

// CSV renders one comma separated record per finding:
// check, type, check_name, then column,value pairs ordered by column.
// Messages are not part of the record stream and are dropped.
type CSV struct {
	w *csv.Writer
}

// NewCSV returns a CSV sink writing to w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// Message is a no-op so that machine output stays parseable.
func (c *CSV) Message(string) error {
	return nil
}

// Emit writes one record and flushes it.
func (c *CSV) Emit(f Finding) error {
	record := make([]string, 0, 3+2*len(f.Fields))
	record = append(record, f.Check, f.Type, f.CheckName)
	for _, fld := range f.SortedFields() {
		record = append(record, fld.Column, fld.Value)
	}
	if err := c.w.Write(record); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}
