package output

import (
	"fmt"
	"io"
	"strings"

	"icatcheck/internal/common"
)

// Output formats accepted by NewSink.
const (
	FormatHuman = "human"
	FormatCSV   = "csv"
)

// NewSink returns the sink for the named format writing to w.
func NewSink(format string, w io.Writer) (Sink, error) {
	switch strings.ToLower(format) {
	case "", FormatHuman:
		return NewHuman(w), nil
	case FormatCSV:
		return NewCSV(w), nil
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", common.ErrUnknownFormat, format, FormatHuman, FormatCSV)
	}
}
