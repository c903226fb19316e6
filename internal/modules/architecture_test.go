package modules

import (
	"testing"

	"plantsim/testutil"
)

// Modules are stepped by the coordinator and see the plant only through
// pkg/domain, the bus and snapshot helpers. Nothing they pull in, directly
// or transitively, may reach the coordinator, the legacy engine or any
// infrastructure.
func TestModulesDoNotReachCoordinatorOrInfra(t *testing.T) {
	forbidden := testutil.AnyOf(
		testutil.CoordinatorImportForbidden,
		testutil.InfraImportForbidden,
		testutil.UnderPrefix(
			"plantsim/internal/legacy",
			"plantsim/internal/archive",
			"plantsim/internal/observability",
			"plantsim/internal/config",
		),
	)
	testutil.AssertNoTransitiveDependency(t, "plantsim/internal/modules/...", forbidden, "modules must stay engine-agnostic")
}

// The shared plumbing the coordinator hands to modules must not depend on
// the coordinator either.
func TestPlumbingDoesNotReachCoordinator(t *testing.T) {
	for _, pattern := range []string{"plantsim/internal/bus", "plantsim/internal/bridge", "plantsim/internal/compare"} {
		testutil.AssertNoTransitiveDependency(t, pattern, testutil.AnyOf(
			testutil.CoordinatorImportForbidden,
			testutil.InfraImportForbidden,
		), pattern+" is shared with modules")
	}
}
