// Package ldtest runs a tree of named server tests as ordinary application code rather than
// under "go test". It provides per-test filtering, feature requirements, debug output that is
// shown only for failures, and console and JUnit result reporting.
package ldtest
