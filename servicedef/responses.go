package servicedef

// StatusOK is the value of the "status" property in a successful JSON response.
const StatusOK = "OK"

// StatusResponse is the minimal shape of every JSON document the server returns: a status and,
// on error, a human-readable message.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// UploadResponse is returned by the upload scripts after a multipart POST. The plain test server
// reports the single stored file at the top level; the IIIF server lists them under "files".
type UploadResponse struct {
	StatusResponse
	UploadFile
	Count int          `json:"cnt"`
	Files []UploadFile `json:"files,omitempty"`
}

// UploadFile describes one stored file from an upload.
type UploadFile struct {
	OrigName    string `json:"origname,omitempty"`
	FileName    string `json:"filename,omitempty"`
	MimeType    string `json:"mimetype,omitempty"`
	FileSize    int64  `json:"filesize,omitempty"`
	Consistency bool   `json:"consistency"`
}

// ServerVariables is returned by the servervariables script. Only the properties that tests
// check are declared; the real document contains more.
type ServerVariables struct {
	StatusResponse
	Config ServerVariablesConfig `json:"config"`
	Server ServerVariablesServer `json:"server"`
}

type ServerVariablesConfig struct {
	Port        int    `json:"port"`
	SSLPort     int    `json:"ssl_port,omitempty"`
	NThreads    int    `json:"nthreads,omitempty"`
	KeepAlive   int    `json:"keep_alive,omitempty"`
	MaxPostSize string `json:"max_post_size,omitempty"`
	ScriptDir   string `json:"scriptdir,omitempty"`
	DocRoot     string `json:"docroot,omitempty"`
}

type ServerVariablesServer struct {
	Method     string            `json:"method"`
	Host       string            `json:"host,omitempty"`
	ClientIP   string            `json:"client_ip,omitempty"`
	ClientPort int               `json:"client_port,omitempty"`
	URI        string            `json:"uri"`
	Secure     bool              `json:"secure"`
	HasOpenSSL bool              `json:"has_openssl"`
	Cookies    map[string]string `json:"cookies,omitempty"`
	Header     map[string]string `json:"header,omitempty"`
	GetParams  map[string]string `json:"get,omitempty"`
}
