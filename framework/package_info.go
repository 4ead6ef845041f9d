// Package framework contains the low-level implementation of the server test harness. The base
// package contains shared types such as Logger and Features; other components are in subpackages.
//
// The general model is:
//
// 1. The harness package starts the server under test as a child process, passing it a fixed set
// of environment variables, and waits until the server prints its readiness marker. All output
// of the child is captured and written to a log file when the server is stopped.
//
// 2. The client package talks to the running server over HTTP and HTTPS, and the compare
// package checks downloaded resources against reference fixtures.
//
// 3. The ldtest package provides a test scope that is similar to Go's testing.T, allowing pieces
// of test logic to be associated with a test identifier and to accumulate success/failure results.
//
// The domain-specific code that knows what is being tested (package servertests) builds on
// these pieces.
package framework
