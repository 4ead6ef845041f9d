package harness

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

// ProcessConfig is the immutable set of environment variables passed to the server process. It
// is the child's complete environment: nothing is inherited from the harness unless the
// supervisor is created with WithInheritedEnv.
//
// The zero value is an empty configuration.
type ProcessConfig struct {
	values map[string]string
}

// NewProcessConfig creates a ProcessConfig from a copy of the map.
func NewProcessConfig(values map[string]string) ProcessConfig {
	return ProcessConfig{values: maps.Clone(values)}
}

// Get returns the value for a key and whether it was present.
func (c ProcessConfig) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Value returns the value for a key, or "" if it is not present.
func (c ProcessConfig) Value(key string) string {
	return c.values[key]
}

// Len returns the number of keys.
func (c ProcessConfig) Len() int {
	return len(c.values)
}

// Keys returns the keys in sorted order.
func (c ProcessConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Environ returns the configuration as KEY=value strings sorted by key, in the form used by
// exec.Cmd.Env.
func (c ProcessConfig) Environ() []string {
	ret := make([]string, 0, len(c.values))
	for _, k := range c.Keys() {
		ret = append(ret, k+"="+c.values[k])
	}
	return ret
}

// With returns a copy of the configuration with one key set. The receiver is not modified.
func (c ProcessConfig) With(key, value string) ProcessConfig {
	values := maps.Clone(c.values)
	if values == nil {
		values = make(map[string]string)
	}
	values[key] = value
	return ProcessConfig{values: values}
}

// Without returns a copy of the configuration with one key removed.
func (c ProcessConfig) Without(key string) ProcessConfig {
	values := maps.Clone(c.values)
	delete(values, key)
	return ProcessConfig{values: values}
}

// Validate checks that the configuration can start a server: the required keys are present,
// every port is a number in range, and the TLS settings are consistent with each other.
func (c ProcessConfig) Validate() error {
	for _, key := range servicedef.RequiredEnv {
		if v, ok := c.values[key]; !ok || strings.TrimSpace(v) == "" {
			return &ConfigError{Key: key, Reason: "is required"}
		}
	}
	for _, key := range servicedef.PortEnv {
		if v, ok := c.values[key]; ok {
			if _, err := parsePort(v); err != nil {
				return &ConfigError{Key: key, Reason: err.Error()}
			}
		}
	}
	if sslPort, ok := c.values[servicedef.EnvSSLPort]; ok && sslPort == c.values[servicedef.EnvPort] {
		return &ConfigError{Key: servicedef.EnvSSLPort, Reason: "must differ from " + servicedef.EnvPort}
	}
	for _, key := range []string{servicedef.EnvSSLCert, servicedef.EnvSSLKey} {
		if _, ok := c.values[key]; ok {
			if _, hasPort := c.values[servicedef.EnvSSLPort]; !hasPort {
				return &ConfigError{Key: key, Reason: "is set but " + servicedef.EnvSSLPort + " is not"}
			}
		}
	}
	return nil
}

// Port returns the plain HTTP port, or zero if it is missing or invalid.
func (c ProcessConfig) Port() int {
	p, _ := parsePort(c.values[servicedef.EnvPort])
	return p
}

// SecurePort returns the TLS port and true, or zero and false if TLS is not configured.
func (c ProcessConfig) SecurePort() (int, bool) {
	v, ok := c.values[servicedef.EnvSSLPort]
	if !ok {
		return 0, false
	}
	p, err := parsePort(v)
	return p, err == nil
}

// Ports returns every configured port, plain first.
func (c ProcessConfig) Ports() []int {
	var ret []int
	if p := c.Port(); p != 0 {
		ret = append(ret, p)
	}
	if p, ok := c.SecurePort(); ok {
		ret = append(ret, p)
	}
	return ret
}

// BaseURL returns the URL of the plain HTTP listener.
func (c ProcessConfig) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", c.Port())
}

// SecureBaseURL returns the URL of the TLS listener, or "" if TLS is not configured. It is always
// derived from the TLS port so that the two cannot disagree.
func (c ProcessConfig) SecureBaseURL() string {
	if p, ok := c.SecurePort(); ok {
		return fmt.Sprintf("https://localhost:%d", p)
	}
	return ""
}

// Features derives the list of enabled server features from the handler settings.
func (c ProcessConfig) Features() framework.Features {
	var fs framework.Features
	add := func(name string, enabled bool) {
		if enabled {
			fs = append(fs, name)
		}
	}
	has := func(key string) bool {
		_, ok := c.values[key]
		return ok
	}
	routes := c.values[servicedef.EnvScriptRoutes] + ";" + c.values[servicedef.EnvIIIFRoutes]
	_, tls := c.SecurePort()
	add(servicedef.FeaturePing, has(servicedef.EnvPingEcho))
	add(servicedef.FeatureTLS, tls)
	add(servicedef.FeatureDocRoot, has(servicedef.EnvDocRoot))
	add(servicedef.FeatureScripts, has(servicedef.EnvScriptRoutes))
	add(servicedef.FeatureUpload, strings.Contains(routes, "POST:/upload"))
	add(servicedef.FeatureSQLite, strings.Contains(routes, "/sqlite3"))
	add(servicedef.FeatureIIIF, has(servicedef.EnvIIIFRoutes))
	return fs
}

func (c ProcessConfig) String() string {
	return strings.Join(c.Environ(), " ")
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a port number", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d is out of range", p)
	}
	return p, nil
}
