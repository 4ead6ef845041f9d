package servertests

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stretchr/testify/require"

	"github.com/cserve-project/cserve-test-harness/data"
	"github.com/cserve-project/cserve-test-harness/framework/client"
	"github.com/cserve-project/cserve-test-harness/framework/compare"
	"github.com/cserve-project/cserve-test-harness/framework/harness"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

// ServerTestContext is everything the tests need to know about the server under test.
type ServerTestContext struct {
	// Profile is the profile that the configuration was built from. Its paths locate the
	// reference files that tests compare responses against.
	Profile data.Profile

	// Config is the server's configuration.
	Config harness.ProcessConfig

	// Client sends requests to the server without a route prefix.
	Client *client.Client

	// WorkDir is the directory that relative profile paths are resolved against; it is also the
	// server's working directory.
	WorkDir string

	// Supervisor is the supervisor of the server process, if there is one.
	Supervisor *harness.ProcessSupervisor
}

func requireContext(t *ldtest.T) ServerTestContext {
	if c, ok := t.Context().(ServerTestContext); ok {
		return c
	}
	panic("ServerTestContext was not included in the global test configuration!" +
		" This is a basic mistake in the initialization logic.")
}

// path resolves a path from the profile against the working directory.
func (c ServerTestContext) path(elem ...string) string {
	p := filepath.Join(elem...)
	if filepath.IsAbs(p) || c.WorkDir == "" {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// iiifClient returns a client whose requests go to the IIIF route prefix.
func (c ServerTestContext) iiifClient() *client.Client {
	return c.Client.WithRoutePrefix(c.Profile.RoutePrefix)
}

func (c ServerTestContext) comparator() *compare.Comparator {
	return compare.New(c.iiifClient())
}

// requireFixture returns the contents of a local reference file. If the file does not exist, the
// test is skipped, since fixtures are provided by the server's source tree and not by the harness.
func requireFixture(t *ldtest.T, path string) []byte {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		t.SkipWithReason(fmt.Sprintf("fixture %s not found", path))
	}
	require.NoError(t, err)
	return data
}

// requireRoute skips the test unless the server has a script or IIIF route for the given path.
func requireRoute(t *ldtest.T, route string) {
	c := requireContext(t)
	routes := c.Config.Value(servicedef.EnvScriptRoutes) + ";" + c.Config.Value(servicedef.EnvIIIFRoutes)
	for _, r := range strings.Split(routes, ";") {
		parts := strings.Split(r, ":")
		if len(parts) == 3 && parts[1] == route {
			return
		}
	}
	t.SkipWithReason(fmt.Sprintf("server has no route for %s", route))
}

// fileRoutePrefix returns the path at which the file handler serves the docroot, such as
// "/fileserv", or "" if it serves it at the server root.
func fileRoutePrefix(config harness.ProcessConfig) string {
	for _, r := range strings.Split(config.Value(servicedef.EnvFileRoutes), ";") {
		parts := strings.Split(r, ":")
		if len(parts) == 3 && parts[0] == "GET" {
			return strings.TrimSuffix(parts[1], "/")
		}
	}
	return ""
}
