package output

import (
	"fmt"
	"io"
	"strings"
)

// Human renders findings as indented text blocks.
type Human struct {
	w io.Writer
}

// NewHuman returns a text sink writing to w.
func NewHuman(w io.Writer) *Human {
	return &Human{w: w}
}

// Message writes text on its own line.
func (h *Human) Message(text string) error {
	_, err := fmt.Fprintln(h.w, text)
	return err
}

// Emit writes one finding.
func (h *Human) Emit(f Finding) error {
	var b strings.Builder
	switch f.Check {
	case "hardlinks":
		switch f.Type {
		case TypeDuplicateEntry:
			fmt.Fprintf(&b, "Duplicate dataobject entry found for data object %s\n  Resource: %s\n  Path: %s\n",
				f.Value("object_name"), f.Value("resource_name"), f.Value("phy_path"))
		case TypeHardlink:
			fmt.Fprintf(&b, "Hard link found for path %s on resource %s:\n  Data object 1: %s\n  Data object 2: %s\n",
				f.Value("phy_path"), f.Value("resource_name"), f.Value("object1"), f.Value("object2"))
		default:
			h.generic(&b, f)
		}
	case "minreplicas":
		fmt.Fprintf(&b, "Number of replicas for data object %s is %s (less than %s)\n",
			f.Value("object_name"), f.Value("number_replicas"), f.Value("min_replicas"))
	case "path_consistency":
		if f.Type == TypeOutsideVault {
			fmt.Fprintf(&b, "Replica outside vault of resource %s for %s :\n  vault path : %s\n  data object : %s\n",
				f.Value("resource_name"), f.Value("phy_path"), f.Value("vault_path"), f.Value("object_name"))
			break
		}
		fmt.Fprintf(&b, "Inconsistent directory name in resource %s for %s :\n  collection name : %s\n  directory name in vault : %s\n",
			f.Value("resource_name"), f.Value("phy_path"), f.Value("coll_name"), f.Value("dir_name"))
	case "names":
		switch f.Type {
		case TypeEmptyName:
			fmt.Fprintf(&b, "Empty name for %s\n", f.CheckName)
		case TypeBuggyCharacters:
			fmt.Fprintf(&b, "Name with characters that iRODS processes incorrectly for %s\n", f.CheckName)
		case TypeTrailingSlash:
			fmt.Fprintf(&b, "Name with trailing slash for %s\n", f.CheckName)
		default:
			fmt.Fprintf(&b, "Name issue (%s) for %s\n", f.Type, f.CheckName)
		}
		writeColumns(&b, f.Fields)
	case "ref_integrity":
		fmt.Fprintf(&b, "Potential referential integrity issue found for %s.\n", f.CheckName)
		writeColumns(&b, f.Fields)
	case "timestamps":
		switch f.Type {
		case TypeOrder:
			fmt.Fprintf(&b, "Timestamps in unexpected order for %s\n", f.CheckName)
		case TypeFuture:
			fmt.Fprintf(&b, "Timestamp from the future for %s\n", f.CheckName)
		default:
			fmt.Fprintf(&b, "Timestamp issue (%s) for %s\n", f.Type, f.CheckName)
		}
		writeColumns(&b, f.Fields)
	default:
		h.generic(&b, f)
	}
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *Human) generic(b *strings.Builder, f Finding) {
	fmt.Fprintf(b, "Issue found by %s", f.Check)
	if f.Type != "" {
		fmt.Fprintf(b, " (%s)", f.Type)
	}
	if f.CheckName != "" {
		fmt.Fprintf(b, " for %s", f.CheckName)
	}
	b.WriteString("\n")
	writeColumns(b, f.Fields)
}

func writeColumns(b *strings.Builder, fields []Field) {
	for _, fld := range fields {
		fmt.Fprintf(b, "  %s : %s\n", fld.Column, fld.Value)
	}
}
