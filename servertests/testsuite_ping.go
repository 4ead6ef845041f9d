package servertests

import (
	"github.com/stretchr/testify/require"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

func doPingTests(t *ldtest.T) {
	t.RequireFeature(servicedef.FeaturePing)
	c := requireContext(t)
	expected := c.Config.Value(servicedef.EnvPingEcho)

	t.Run("plain", func(t *ldtest.T) {
		text, err := c.Client.GetText("/ping")
		require.NoError(t, err)
		m.In(t).Assert(text, m.Equal(expected))
	})

	t.Run("secure", func(t *ldtest.T) {
		t.RequireFeature(servicedef.FeatureTLS)
		text, err := c.Client.GetSecureText("/ping")
		require.NoError(t, err)
		m.In(t).Assert(text, m.Equal(expected))
	})
}
