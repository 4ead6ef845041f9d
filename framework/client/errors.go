package client

import (
	"fmt"
)

// RequestFailedError is returned when a request could not be sent, or when the server responded
// with a status other than 2xx.
type RequestFailedError struct {
	Method     string
	URL        string
	StatusCode int

	// ServerMessage is the "message" property of the response body, if the body was a JSON object
	// that had one.
	ServerMessage string

	// Err is the transport error, if the request never got a response.
	Err error
}

func (e *RequestFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s", e.Method, e.URL, e.Err)
	}
	if e.ServerMessage != "" {
		return fmt.Sprintf("%s %s returned HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.ServerMessage)
	}
	return fmt.Sprintf("%s %s returned HTTP %d", e.Method, e.URL, e.StatusCode)
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body, or a downloaded file, could not be decoded in the
// expected format.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode %s: %s", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
