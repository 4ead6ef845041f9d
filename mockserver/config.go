package mockserver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cserve-project/cserve-test-harness/servicedef"
)

// EnvMockMode selects misbehavior for exercising the supervisor's failure paths. It is not part
// of the real server's configuration.
const EnvMockMode = "CSERVE_MOCK_MODE"

// Modes for EnvMockMode.
const (
	ModeNormal      = ""
	ModeNeverReady  = "never-ready"
	ModeExitEarly   = "exit-early"
	ModeIgnoreTerm  = "ignore-term"
	ModeLongOutput  = "long-output"
	ModeDelayedMark = "delayed-ready"
)

// Config is the subset of the server configuration that the mock server understands.
type Config struct {
	Port        int
	SSLPort     int
	CertFile    string
	KeyFile     string
	DocRoot     string
	PingEcho    string
	JWTKey      string
	ScriptDir   string
	TmpDir      string
	ImgRoot     string
	IIIFPrefix  string
	FilePrefix  string
	MaxPostSize string
	NThreads    int
	KeepAlive   int
	Mode        string
}

// ConfigFromEnv reads the configuration from environment variables, using getenv to look them
// up (os.Getenv in a real process).
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	c := Config{
		DocRoot:     getenv(servicedef.EnvDocRoot),
		PingEcho:    getenv(servicedef.EnvPingEcho),
		JWTKey:      getenv(servicedef.EnvJWTKey),
		ScriptDir:   getenv(servicedef.EnvScriptDir),
		TmpDir:      getenv(servicedef.EnvTmpDir),
		CertFile:    getenv(servicedef.EnvSSLCert),
		KeyFile:     getenv(servicedef.EnvSSLKey),
		ImgRoot:     getenv(servicedef.EnvIIIFImgRoot),
		MaxPostSize: getenv(servicedef.EnvMaxPostSize),
		Mode:        getenv(EnvMockMode),
	}
	var err error
	if c.Port, err = intFromEnv(getenv, servicedef.EnvPort, 0); err != nil {
		return c, err
	}
	if c.Port == 0 {
		return c, fmt.Errorf("%s is required", servicedef.EnvPort)
	}
	if c.SSLPort, err = intFromEnv(getenv, servicedef.EnvSSLPort, 0); err != nil {
		return c, err
	}
	if c.NThreads, err = intFromEnv(getenv, servicedef.EnvNThreads, 4); err != nil {
		return c, err
	}
	if c.KeepAlive, err = intFromEnv(getenv, servicedef.EnvKeepAlive, 5); err != nil {
		return c, err
	}
	if c.PingEcho == "" {
		c.PingEcho = "PONG"
	}
	if routes := getenv(servicedef.EnvIIIFRoutes); routes != "" {
		c.IIIFPrefix = builtinRoutePrefix(routes)
	}
	c.FilePrefix = builtinRoutePrefix(getenv(servicedef.EnvFileRoutes))
	return c, nil
}

func intFromEnv(getenv func(string) string, key string, defaultValue int) (int, error) {
	s := strings.TrimSpace(getenv(key))
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, s)
	}
	return n, nil
}

// builtinRoutePrefix finds the GET route whose handler is the built-in C++ handler, for instance
// "iiif" from "GET:/iiif:/C++;GET:/iiifhandlervariables:iiifhandlervariables.lua".
func builtinRoutePrefix(routes string) string {
	for _, r := range strings.Split(routes, ";") {
		parts := strings.Split(r, ":")
		if len(parts) == 3 && parts[0] == "GET" && strings.HasSuffix(parts[2], "C++") {
			return strings.Trim(parts[1], "/")
		}
	}
	return ""
}
