package servertests

import (
	"fmt"

	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
)

// RunServerTestSuite runs the whole test tree against the server described by ctx. The server
// must already be running.
func RunServerTestSuite(
	ctx ServerTestContext,
	filter ldtest.Filter,
	testLogger ldtest.TestLogger,
) ldtest.Results {
	fmt.Printf("Running server test suite with profile %q\n", ctx.Profile.Name)
	fmt.Println()

	config := ldtest.TestConfiguration{
		Filter:     filter,
		TestLogger: testLogger,
		Context:    ctx,
		Features:   ctx.Config.Features(),
	}

	return ldtest.Run(config, func(t *ldtest.T) {
		t.Run("ping", doPingTests)
		t.Run("docroot", doDocRootTests)
		t.Run("scripts", doScriptTests)
		t.Run("upload", doUploadTests)
		t.Run("iiif", doIIIFTests)
	})
}
