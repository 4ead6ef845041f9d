// Package servicedef contains definitions for the contract between the harness and the server
// under test: the environment variables that configure the server process, the feature names
// derived from them, and the shapes of the JSON documents the server returns.
//
// The package has no dependencies on the rest of the harness, so it can be imported by the
// mock server as well as by the test suite.
package servicedef
