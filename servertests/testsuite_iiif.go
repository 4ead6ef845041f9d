package servertests

import (
	"image"
	"net/http"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/require"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

const pyramidTIFF = "tiff_01_rgb_pyramid.tif"

// expectedTest01Info is the info.json of the 1200x800 test_01.tif fixture, without its id.
const expectedTest01Info = `{
  "@context": "http://iiif.io/api/image/3/context.json",
  "type": "ImageService3",
  "protocol": "http://iiif.io/api/image",
  "profile": "level2",
  "width": 1200,
  "height": 800,
  "sizes": [{"width": 600, "height": 400}, {"width": 300, "height": 200}],
  "extraFeatures": ["baseUriRedirect", "canonicalLinkHeader", "cors", "jsonldMediaType",
    "mirroring", "profileLinkHeader", "regionByPct", "regionByPx", "regionSquare",
    "rotationArbitrary", "rotationBy90s", "sizeByConfinedWh", "sizeByH", "sizeByPct",
    "sizeByW", "sizeByWh", "sizeUpscaling"],
  "extraFormats": ["tif", "jp2"],
  "extraQualities": ["color", "gray", "bitonal"],
  "preferredFormats": ["jpg", "tif", "jp2", "png"]
}`

func doIIIFTests(t *ldtest.T) {
	t.RequireFeature(servicedef.FeatureIIIF)
	c := requireContext(t)
	iiif := c.iiifClient()
	imgRoot := func(name string) string { return c.path(c.Profile.ImgRoot, name) }
	dataDir := func(name string) string { return c.path(c.Profile.DataDir, name) }

	t.Run("get image", func(t *ldtest.T) {
		requireFixture(t, imgRoot("test_01.tif"))
		status, err := iiif.GetStatusCode("test_01.tif/full/max/0/default.jpg")
		require.NoError(t, err)
		m.In(t).Assert(status, m.Equal(http.StatusOK))
	})

	t.Run("info", func(t *ldtest.T) {
		requireFixture(t, imgRoot("test_01.tif"))
		info, err := iiif.GetJSON("test_01.tif")
		require.NoError(t, err)
		t.Debug("info.json: %s", helpers.CanonicalizedJSONString(info))
		// The id carries the host and port the request went to.
		m.In(t).For("id").Assert(info.GetByKey("id").StringValue(),
			m.StringHasSuffix("/"+c.Profile.RoutePrefix+"/test_01.tif"))
		withoutID := ldvalue.ValueMapBuildFromMap(info.AsValueMap()).Remove("id").Build()
		m.In(t).Assert(withoutID, m.JSONStrEqual(expectedTest01Info))
	})

	t.Run("restricted size", func(t *ldtest.T) {
		requireFixture(t, imgRoot("RestrictLeaves.jpg"))
		downloaded, err := iiif.Download("RestrictLeaves.jpg/full/max/0/default.jpg", ".jpg")
		require.NoError(t, err)
		defer os.Remove(downloaded) //nolint:errcheck
		f, err := os.Open(downloaded)
		require.NoError(t, err)
		defer f.Close() //nolint:errcheck
		cfg, _, err := image.DecodeConfig(f)
		require.NoError(t, err)
		m.In(t).For("width").Assert(cfg.Width, m.Equal(servicedef.IIIFRestrictedSize))
		m.In(t).For("height").Assert(cfg.Height, m.Equal(servicedef.IIIFRestrictedSize))
	})

	t.Run("pyramidal tiff", func(t *ldtest.T) {
		requireFixture(t, imgRoot(pyramidTIFF))

		t.Run("delivered", func(t *ldtest.T) {
			status, err := iiif.GetStatusCode(pyramidTIFF + "/full/max/0/default.jpg")
			require.NoError(t, err)
			m.In(t).Assert(status, m.Equal(http.StatusOK))
		})

		t.Run("full size", func(t *ldtest.T) {
			ref := dataDir("tiff_01_rgb_uncompressed.tif")
			requireFixture(t, ref)
			assertSameImage(t, pyramidTIFF+"/full/max/0/default.tif", ref)
		})

		t.Run("upper left tile", func(t *ldtest.T) {
			ref := dataDir("tiff_01_rgb_pyramid_res04.tif")
			requireFixture(t, ref)
			assertSameImage(t, pyramidTIFF+"/0,0,512,512/256,256/0/default.tif", ref)
		})
	})

	t.Run("unmodified bytes", func(t *ldtest.T) {
		ref := imgRoot("Leaves.jpg")
		requireFixture(t, ref)
		assertSameBytes(t, "Leaves.jpg/full/max/0/default.jpg", ref)
	})

	t.Run("access denied", func(t *ldtest.T) {
		status, err := iiif.GetStatusCode("DenyLeaves.jpg/full/max/0/default.jpg")
		require.NoError(t, err)
		m.In(t).Assert(status, m.Equal(http.StatusUnauthorized))
	})

	t.Run("file allowed", func(t *ldtest.T) {
		ref := imgRoot("test_allow.csv")
		requireFixture(t, ref)
		assertSameBytes(t, "test_allow.csv/file", ref)
	})

	t.Run("file denied", func(t *ldtest.T) {
		status, err := iiif.GetStatusCode("test_deny.csv/file")
		require.NoError(t, err)
		m.In(t).Assert(status, m.Equal(http.StatusUnauthorized))
	})

	t.Run("upload", func(t *ldtest.T) {
		t.RequireFeature(servicedef.FeatureUpload)

		t.Run("file", func(t *ldtest.T) {
			ref := dataDir("test.csv")
			content := requireFixture(t, ref)
			resp := upload(t, ref, "text/csv")
			m.In(t).For("cnt").Assert(resp.Count, m.Equal(1))
			require.Len(t, resp.Files, 1)
			m.In(t).Assert(resp.Files[0], m.Equal(servicedef.UploadFile{
				OrigName:    "test.csv",
				FileName:    "_test.csv",
				MimeType:    "text/csv",
				FileSize:    int64(len(content)),
				Consistency: true,
			}))
			assertSameBytes(t, "_test.csv/file", ref)
		})

		t.Run("image", func(t *ldtest.T) {
			ref := dataDir("IMG_8207.tiff")
			content := requireFixture(t, ref)
			resp := upload(t, ref, "image/tiff")
			t.Debug("stored files: %s", helpers.AsJSONString(resp.Files))
			m.In(t).For("cnt").Assert(resp.Count, m.Equal(1))
			require.Len(t, resp.Files, 1)
			m.In(t).Assert(resp.Files[0], m.Equal(servicedef.UploadFile{
				OrigName:    "IMG_8207.tiff",
				FileName:    "_IMG_8207.jp2",
				MimeType:    "image/tiff",
				FileSize:    int64(len(content)),
				Consistency: true,
			}))
			assertSameImage(t, "_IMG_8207.jp2/full/max/0/default.tif", ref)
		})
	})
}

// assertSameBytes downloads a resource from the IIIF route and compares it with a local file.
func assertSameBytes(t *ldtest.T, remotePath, refPath string) {
	t.Helper()
	equal, downloaded, err := requireContext(t).comparator().CompareBytes(remotePath, refPath)
	require.NoError(t, err)
	if downloaded != "" {
		t.Debug("kept differing download at %s", downloaded)
	}
	m.In(t).Assert(equal, m.Equal(true))
}

// assertSameImage downloads an image from the IIIF route and compares its pixels with a local
// reference image.
func assertSameImage(t *ldtest.T, remotePath, refPath string) {
	t.Helper()
	result, err := requireContext(t).comparator().CompareImages(remotePath, refPath)
	require.NoError(t, err)
	t.Debug("image comparison: %s", result)
	if result.DownloadedPath != "" {
		t.Debug("kept differing download at %s", result.DownloadedPath)
	}
	m.In(t).Assert(result.Equal, m.Equal(true))
}
