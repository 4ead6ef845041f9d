// Package client is an HTTP client for making test requests to the server under test.
//
// Every request is built from a path relative to the server's base URL (plus an optional route
// prefix such as "iiif"), and non-2xx responses are reported as *RequestFailedError so that a test
// can simply fail on any error. Use GetRaw or GetStatusCode when a non-2xx status is the expected
// result.
package client
