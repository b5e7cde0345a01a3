package detector

import (
	"fmt"

	"icatcheck/internal/catalog"
	"icatcheck/internal/common"
)

// zoneRootDepth is the number of leading collection components that have no
// counterpart under a vault: the zone and the "home" level.
const zoneRootDepth = 2

// Mismatch holds the two relative directories compared by Reconcile, both
// without leading or trailing slashes.
type Mismatch struct {
	// Expected is the collection path below the zone root.
	Expected string
	// Actual is the directory of the physical path below the vault.
	Actual string
}

// Reconcile compares where a replica is stored with where its collection says
// it should be. It returns the compared directories and whether they differ.
// A physical path outside vault yields an error wrapping
// common.ErrMalformedPath.
func Reconcile(r catalog.Replica, vault, collPath string) (Mismatch, bool, error) {
	dir := common.ParentPath(r.PhysicalPath)
	actual, ok := common.RelativeTo(dir, vault)
	if !ok {
		return Mismatch{}, false, fmt.Errorf("%w: %s not under %s", common.ErrMalformedPath, r.PhysicalPath, vault)
	}
	m := Mismatch{
		Expected: common.StripComponents(collPath, zoneRootDepth),
		Actual:   actual,
	}
	return m, m.Expected != m.Actual, nil
}
