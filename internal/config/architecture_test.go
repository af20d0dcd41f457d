package config

import (
	"testing"

	"mortgageintake/testutil"
)

func TestDoesNotImportPipeline(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "configuration is mapped onto packages by cmd")
}
