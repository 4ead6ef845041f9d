package servertests

import (
	"errors"
	"net/http"

	"github.com/stretchr/testify/require"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/cserve-project/cserve-test-harness/framework/client"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

const expectedLuaPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>LuaTest</title>
</head>
<body>
Hello from Lua!
</body>
</html>`

func doDocRootTests(t *ldtest.T) {
	t.RequireFeature(servicedef.FeatureDocRoot)
	c := requireContext(t)
	files := c.Client.WithRoutePrefix(fileRoutePrefix(c.Config))

	for _, name := range []string{"test.html", "test.csv"} {
		fileName := name
		t.Run(fileName, func(t *ldtest.T) {
			expected := string(requireFixture(t, c.path(c.Profile.DocRoot, fileName)))

			t.Run("plain", func(t *ldtest.T) {
				text, err := files.GetText(fileName)
				require.NoError(t, err)
				m.In(t).Assert(text, m.Equal(expected))
			})

			t.Run("secure", func(t *ldtest.T) {
				t.RequireFeature(servicedef.FeatureTLS)
				text, err := files.GetSecureText(fileName)
				require.NoError(t, err)
				m.In(t).Assert(text, m.Equal(expected))
			})
		})
	}

	t.Run("not found", func(t *ldtest.T) {
		_, err := files.GetText("gaga.html")
		var rfe *client.RequestFailedError
		require.True(t, errors.As(err, &rfe), "expected a RequestFailedError, got %v", err)
		m.In(t).Assert(rfe.StatusCode, m.Equal(http.StatusNotFound))
	})

	t.Run("byte range", func(t *ldtest.T) {
		requireFixture(t, c.path(c.Profile.DocRoot, "range.dat"))
		text, err := files.GetText("range.dat", client.ByteRange(5, 14))
		require.NoError(t, err)
		m.In(t).Assert(text, m.Equal("456789B012"))
	})

	t.Run("embedded lua page", func(t *ldtest.T) {
		t.RequireFeature(servicedef.FeatureScripts)
		requireFixture(t, c.path(c.Profile.DocRoot, "luatest.elua"))
		text, err := files.GetText("luatest.elua")
		require.NoError(t, err)
		m.In(t).Assert(text, m.Equal(expectedLuaPage))
	})
}
