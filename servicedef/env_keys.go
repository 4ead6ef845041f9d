package servicedef

// Environment variables understood by the server process. The harness passes the whole process
// configuration as the child's environment, so these are also the keys of a profile's "env" map.
const (
	EnvHandlerDir     = "CSERVE_HANDLERDIR"
	EnvPort           = "CSERVE_PORT"
	EnvSSLPort        = "CSERVE_SSLPORT"
	EnvSSLCert        = "CSERVE_SSLCERT"
	EnvSSLKey         = "CSERVE_SSLKEY"
	EnvJWTKey         = "CSERVE_JWTKEY"
	EnvTmpDir         = "CSERVE_TMPDIR"
	EnvLuaIncludePath = "CSERVE_LUA_INCLUDE_PATH"
	EnvNThreads       = "CSERVE_NTHREADS"
	EnvKeepAlive      = "CSERVE_KEEPALIVE"
	EnvMaxPostSize    = "CSERVE_MAXPOSTSIZE"
	EnvMaxPost        = "CSERVE_MAXPOST"
	EnvLogLevel       = "CSERVE_LOGLEVEL"
	EnvInitScript     = "CSERVE_INITSCRIPT"
	EnvScriptDir      = "SCRIPTHANDLER_SCRIPTDIR"
	EnvScriptRoutes   = "SCRIPTHANDLER_ROUTES"
	EnvDocRoot        = "FILEHANDLER_DOCROOT"
	EnvFileRoutes     = "FILEHANDLER_ROUTES"
	EnvPingEcho       = "PINGHANDLER_ECHO"
	EnvIIIFImgRoot    = "IIIFHANDLER_IMGROOT"
	EnvIIIFRoutes     = "IIIFHANDLER_ROUTES"
	EnvIIIFPrefixPath = "IIIFHANDLER_PREFIX_AS_PATH"
	EnvIIIFSpecials   = "IIIFHANDLER_IIIF_SPECIALS"
)

// RequiredEnv lists the keys without which the server cannot start.
var RequiredEnv = []string{EnvHandlerDir, EnvPort} //nolint:gochecknoglobals

// PortEnv lists the keys whose values are TCP ports the server binds.
var PortEnv = []string{EnvPort, EnvSSLPort} //nolint:gochecknoglobals

// ReadyMarker is the text the server prints once all of its listeners are accepting connections.
const ReadyMarker = "Cserver ready"

// DefaultProcessName is the executable name used for the stray-process sweep.
const DefaultProcessName = "cserver"

// DefaultLogFile is where the captured server output is written.
const DefaultLogFile = "cserver.log"
