// Package mockserver is a small stand-in for the real server, used by the harness's own Go tests
// and by the mockcserver command. It reads the same environment variables, serves a subset of the
// same routes, and prints the same readiness marker, so the supervisor and the test suite can be
// exercised without building the real server.
package mockserver
