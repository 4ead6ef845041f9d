// Package serviceinfo provides a data model for describing the server under test in reports.
package serviceinfo

import (
	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
)

// ServerInfo describes the supervised server for one test session. It is printed at startup and
// stored as a property in the JUnit report so that a report can be traced back to the binary and
// configuration that produced it.
type ServerInfo struct {
	// Executable is the path of the server binary.
	Executable string `json:"executable"`

	// Profile is the name or file path of the configuration profile.
	Profile string `json:"profile"`

	// BaseURL and SecureBaseURL are the plain and TLS base URLs the client uses.
	BaseURL       string `json:"baseUrl"`
	SecureBaseURL string `json:"secureBaseUrl,omitempty"`

	// Features is the list of features enabled by the profile.
	Features framework.Features `json:"features"`

	// SessionID identifies this harness run. It is also written to the top of the server log.
	SessionID string `json:"sessionId"`

	// PID is the process ID of the server, or zero if it was not started.
	PID int `json:"pid,omitempty"`
}

// FullData returns the JSON representation of the ServerInfo.
func (s ServerInfo) FullData() []byte {
	return helpers.AsJSON(s)
}

func Empty() ServerInfo {
	return ServerInfo{}
}
