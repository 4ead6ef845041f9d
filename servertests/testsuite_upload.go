package servertests

import (
	"encoding/json"

	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

func doUploadTests(t *ldtest.T) {
	t.RequireFeature(servicedef.FeatureUpload)
	if t.HasFeature(servicedef.FeatureIIIF) {
		t.SkipWithReason("uploads to the IIIF server are tested in the iiif group")
	}
	c := requireContext(t)
	tuxPath := c.path(c.Profile.DataDir, "tux.jpg")

	t.Run("declared type matches content", func(t *ldtest.T) {
		tux := requireFixture(t, tuxPath)
		resp := upload(t, tuxPath, "image/jpeg")
		m.In(t).For("mimetype").Assert(resp.MimeType, m.Equal("image/jpeg"))
		m.In(t).For("consistency").Assert(resp.Consistency, m.Equal(true))
		m.In(t).For("origname").Assert(resp.OrigName, m.Equal("tux.jpg"))
		m.In(t).For("cnt").Assert(resp.Count, m.Equal(1))
		m.In(t).For("filesize").Assert(resp.FileSize, m.Equal(int64(len(tux))))
	})

	t.Run("declared type does not match content", func(t *ldtest.T) {
		tux := requireFixture(t, tuxPath)
		resp := upload(t, tuxPath, "text/plain")
		m.In(t).For("mimetype").Assert(resp.MimeType, m.Equal("text/plain"))
		m.In(t).For("consistency").Assert(resp.Consistency, m.Equal(false))
		m.In(t).For("origname").Assert(resp.OrigName, m.Equal("tux.jpg"))
		m.In(t).For("cnt").Assert(resp.Count, m.Equal(1))
		m.In(t).For("filesize").Assert(resp.FileSize, m.Equal(int64(len(tux))))
	})
}

// upload posts a file to the upload script at the server root and checks that it succeeded.
func upload(t *ldtest.T, filePath, mimeType string) servicedef.UploadResponse {
	t.Helper()
	value, err := requireContext(t).Client.PostMultipart("/upload", filePath, mimeType, nil)
	require.NoError(t, err)
	t.Debug("upload response: %s", helpers.CanonicalizedJSONString(value))
	resp := decodeUploadResponse(t, value)
	m.In(t).For("status").Assert(resp.Status, m.Equal(servicedef.StatusOK))
	return resp
}

func decodeUploadResponse(t *ldtest.T, value ldvalue.Value) servicedef.UploadResponse {
	var resp servicedef.UploadResponse
	require.NoError(t, json.Unmarshal([]byte(value.JSONString()), &resp))
	return resp
}
