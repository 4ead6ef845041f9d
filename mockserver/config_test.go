package mockserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cserve-project/cserve-test-harness/servicedef"
)

func envFunc(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestConfigFromEnv(t *testing.T) {
	c, err := ConfigFromEnv(envFunc(map[string]string{
		servicedef.EnvPort:       "8080",
		servicedef.EnvSSLPort:    "8443",
		servicedef.EnvPingEcho:   "PINGPONG",
		servicedef.EnvIIIFRoutes: "GET:/iiif:/C++;GET:/iiifhandlervariables:iiifhandlervariables.lua;",
		servicedef.EnvFileRoutes: "GET:/fileserv:C++;PUT:/fileserv:C++",
	}))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, 8443, c.SSLPort)
	assert.Equal(t, "PINGPONG", c.PingEcho)
	assert.Equal(t, "iiif", c.IIIFPrefix)
	assert.Equal(t, "fileserv", c.FilePrefix)
	assert.Equal(t, 4, c.NThreads)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	c, err := ConfigFromEnv(envFunc(map[string]string{servicedef.EnvPort: "8080"}))
	require.NoError(t, err)
	assert.Equal(t, "PONG", c.PingEcho)
	assert.Equal(t, 0, c.SSLPort)
	assert.Equal(t, "", c.IIIFPrefix)
	assert.Equal(t, "", c.FilePrefix)
}

func TestConfigFromEnvErrors(t *testing.T) {
	_, err := ConfigFromEnv(envFunc(nil))
	assert.Error(t, err)

	_, err = ConfigFromEnv(envFunc(map[string]string{servicedef.EnvPort: "eighty"}))
	assert.Error(t, err)
}
