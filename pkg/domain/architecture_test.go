package domain_test

import (
	"testing"

	"plantsim/testutil"
)

// TestDomainDoesNotImportInternal keeps the contracts importable by external
// engines without dragging in coordinator or storage code.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must stay a leaf package")
}

// TestDomainHasNoThirdPartyImports keeps the wire types free of vendor types.
func TestDomainHasNoThirdPartyImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdPartyImport, "domain depends on the standard library only")
}
