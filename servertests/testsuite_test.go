package servertests

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/cserve-project/cserve-test-harness/data"
	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/client"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/mockserver"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

type recordingTestLogger struct {
	finished map[string]bool
	skipped  map[string]string
}

func newRecordingTestLogger() *recordingTestLogger {
	return &recordingTestLogger{finished: make(map[string]bool), skipped: make(map[string]string)}
}

func (r *recordingTestLogger) TestStarted(ldtest.TestID) {}

func (r *recordingTestLogger) TestError(ldtest.TestID, error) {}

func (r *recordingTestLogger) TestFinished(id ldtest.TestID, _ ldtest.TestResult, _ framework.CapturedOutput) {
	r.finished[id.String()] = true
}

func (r *recordingTestLogger) TestSkipped(id ldtest.TestID, reason string) {
	r.skipped[id.String()] = reason
}

func (r *recordingTestLogger) EndLog(ldtest.Results) error { return nil }

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644)) //nolint:gosec
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 20), B: 128, A: 255})
		}
	}
	return img
}

// blockImage is a square image of solid blocks, so that scaling it by a power of two with
// nearest-neighbor sampling gives exact results.
func blockImage(size, block int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			bx, by := x/block, y/block
			img.Set(x, y, color.RGBA{R: uint8(bx * 4), G: uint8(by * 4), B: uint8((bx + by) % 2 * 255), A: 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	writeJPEGImage(t, path, testImage())
}

func writeJPEGImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func writeTIFF(t *testing.T, path string) {
	t.Helper()
	writeTIFFImage(t, path, testImage())
}

func writeTIFFImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	require.NoError(t, tiff.Encode(f, img, nil))
}

// startMockServer serves the mock server with the profile's configuration, minus TLS, and with
// its directories resolved under workDir.
func startMockServer(t *testing.T, profileName, workDir string) ServerTestContext {
	t.Helper()
	profile, err := data.LoadProfile(profileName)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port

	overrides := map[string]string{servicedef.EnvPort: fmt.Sprint(port)}
	for key, dir := range map[string]string{
		servicedef.EnvDocRoot:     profile.DocRoot,
		servicedef.EnvTmpDir:      profile.TmpDirs[0],
		servicedef.EnvIIIFImgRoot: profile.ImgRoot,
	} {
		if dir != "" {
			overrides[key] = filepath.Join(workDir, dir)
		}
	}
	config := profile.ProcessConfig(t.TempDir(), overrides).Without(servicedef.EnvSSLPort)

	mockConfig, err := mockserver.ConfigFromEnv(config.Value)
	require.NoError(t, err)
	handler := mockserver.NewHandler(mockConfig, nil)
	t.Cleanup(func() { _ = handler.Close() })

	server := httptest.NewUnstartedServer(handler)
	_ = server.Listener.Close()
	server.Listener = l
	server.Start()
	t.Cleanup(server.Close)

	c, err := client.FromConfig(config, "")
	require.NoError(t, err)
	return ServerTestContext{Profile: profile, Config: config, Client: c, WorkDir: workDir}
}

func runSuite(t *testing.T, ctx ServerTestContext, skip ...string) *recordingTestLogger {
	t.Helper()
	var filters ldtest.RegexFilters
	for _, s := range skip {
		require.NoError(t, filters.MustNotMatch.Set(s))
	}
	logger := newRecordingTestLogger()
	results := RunServerTestSuite(ctx, filters, logger)
	for _, f := range results.Failures {
		t.Errorf("%s failed: %v", f.TestID, f.Errors)
	}
	return logger
}

func TestSuiteAgainstMockTestServer(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "testserver/docroot/test.html"), []byte("<html><body>test</body></html>\n"))
	writeFile(t, filepath.Join(workDir, "testserver/docroot/test.csv"), []byte("a,b,c\n1,2,3\n"))
	writeFile(t, filepath.Join(workDir, "testserver/docroot/range.dat"), []byte("ABCDE456789B012FGHIJ"))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "testserver/tmp"), 0o755))
	writeJPEG(t, filepath.Join(workDir, "tux.jpg"))

	ctx := startMockServer(t, "testserver", workDir)
	logger := runSuite(t, ctx, "scripts/filefunctions")

	for _, id := range []string{
		"ping/plain",
		"docroot/test.html/plain",
		"docroot/test.csv/plain",
		"docroot/not found",
		"docroot/byte range",
		"scripts/servervariables/config",
		"scripts/servervariables/request",
		"scripts/servervariables/cookies",
		"scripts/misc",
		"scripts/sqlite3",
		"upload/declared type matches content",
		"upload/declared type does not match content",
	} {
		assert.True(t, logger.finished[id], "expected %q to run", id)
	}
	assert.Contains(t, logger.skipped, "ping/secure")
	assert.Contains(t, logger.skipped, "scripts/filefunctions")
	assert.Contains(t, logger.skipped["docroot/embedded lua page"], "luatest.elua")
	assert.Contains(t, logger.skipped, "iiif")

	uploaded, err := filepath.Glob(filepath.Join(workDir, "testserver/tmp/_*"))
	require.NoError(t, err)
	assert.NotEmpty(t, uploaded)
}

func TestSuiteAgainstMockIIIFServer(t *testing.T) {
	workDir := t.TempDir()
	writeJPEG(t, filepath.Join(workDir, "iiiftestserver/imgroot/Leaves.jpg"))
	writeTIFFImage(t, filepath.Join(workDir, "iiiftestserver/imgroot/test_01.tif"), image.NewRGBA(image.Rect(0, 0, 1200, 800)))
	writeJPEGImage(t, filepath.Join(workDir, "iiiftestserver/imgroot/RestrictLeaves.jpg"), blockImage(256, 8))
	writeTIFFImage(t, filepath.Join(workDir, "iiiftestserver/imgroot/tiff_01_rgb_pyramid.tif"), blockImage(1024, 8))
	writeTIFFImage(t, filepath.Join(workDir, "data/tiff_01_rgb_uncompressed.tif"), blockImage(1024, 8))
	writeTIFFImage(t, filepath.Join(workDir, "data/tiff_01_rgb_pyramid_res04.tif"), blockImage(256, 4))
	writeFile(t, filepath.Join(workDir, "iiiftestserver/imgroot/test_allow.csv"), []byte("x,y\n1,2\n3,4\n"))
	writeFile(t, filepath.Join(workDir, "data/test.csv"), []byte(strings.Repeat("a,b,c\n", 20)))
	writeTIFF(t, filepath.Join(workDir, "data/IMG_8207.tiff"))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "iiiftestserver/tmp"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "iiiftestserver/docroot"), 0o755))

	ctx := startMockServer(t, "iiiftestserver", workDir)
	logger := runSuite(t, ctx)

	for _, id := range []string{
		"ping/plain",
		"docroot/not found",
		"scripts/misc",
		"iiif/get image",
		"iiif/info",
		"iiif/restricted size",
		"iiif/pyramidal tiff/delivered",
		"iiif/pyramidal tiff/full size",
		"iiif/pyramidal tiff/upper left tile",
		"iiif/unmodified bytes",
		"iiif/access denied",
		"iiif/file allowed",
		"iiif/file denied",
		"iiif/upload/file",
		"iiif/upload/image",
	} {
		assert.True(t, logger.finished[id], "expected %q to run", id)
	}
	assert.Contains(t, logger.skipped, "upload")
	assert.Contains(t, logger.skipped, "scripts/servervariables")
	assert.Contains(t, logger.skipped, "scripts/sqlite3")

	assert.FileExists(t, filepath.Join(workDir, "iiiftestserver/imgroot/_test.csv"))
	assert.FileExists(t, filepath.Join(workDir, "iiiftestserver/imgroot/_IMG_8207.jp2"))
}

func TestFileRoutePrefix(t *testing.T) {
	prefixOf := func(routes string) string {
		return fileRoutePrefix(data.Profile{}.ProcessConfig("", map[string]string{servicedef.EnvFileRoutes: routes}))
	}
	assert.Equal(t, "", prefixOf("GET:/:C++;PUT:/:C++"))
	assert.Equal(t, "/fileserv", prefixOf("GET:/fileserv:C++;PUT:/fileserv:C++"))
	assert.Equal(t, "/files", prefixOf("PUT:/files:C++;GET:/files/:C++"))
	assert.Equal(t, "", prefixOf(""))
}
