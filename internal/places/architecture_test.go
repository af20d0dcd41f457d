package places

import (
	"testing"

	"mortgageintake/testutil"
)

func TestDoesNotImportPipeline(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.PipelineImportForbidden, "adapters are wired into the pipeline by cmd, not the reverse")
}
