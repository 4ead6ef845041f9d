// Package servertests contains the test cases that the harness runs against a supervised server.
// Each group of tests requires the features that the active profile enables, so the same tree
// runs against the plain test server and the IIIF test server.
package servertests
