package servicedef

// Claims of the token returned by the misc script. It is signed with the server's JWT key.
const (
	MiscTokenAudience = "http://test.org"
	MiscTokenIssuer   = "http://cserver.org"
	MiscTokenID       = "1234567890"
	MiscTokenKey      = "abcdefghijk"
	MiscTokenSubject  = "https://test.org/gaga"
)

// MiscResponse is the response of the misc script.
type MiscResponse struct {
	StatusResponse
	UUID     string `json:"uuid"`
	UUID62   string `json:"uuid62"`
	UUID2    string `json:"uuid_2"`
	UUID62_2 string `json:"uuid62_2"` //nolint:revive,stylecheck
	JWT      string `json:"jwt"`
}

// SQLiteResponse is the response of the sqlite3 script: the rows of the test database by key.
type SQLiteResponse struct {
	StatusResponse
	Result map[string]string `json:"result"`
}
