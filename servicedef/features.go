package servicedef

// Feature names derived from the process configuration. Tests call T.RequireFeature with these
// so that a profile that does not configure a handler skips the tests for it.
const (
	FeatureTLS     = "tls"
	FeaturePing    = "ping"
	FeatureDocRoot = "docroot"
	FeatureScripts = "scripts"
	FeatureUpload  = "upload"
	FeatureIIIF    = "iiif"
	FeatureSQLite  = "sqlite"
)

// AllFeatures is every feature that some test can require, in display order.
var AllFeatures = []string{ //nolint:gochecknoglobals
	FeaturePing,
	FeatureTLS,
	FeatureDocRoot,
	FeatureScripts,
	FeatureUpload,
	FeatureSQLite,
	FeatureIIIF,
}
