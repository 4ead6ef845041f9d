package mockserver

import (
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

const maxUploadMemory = 1 << 20

// Handler is an http.Handler imitating the routes of the real server that the test suite
// exercises: the ping handler, the file handler's docroot, the servervariables and upload
// scripts, and the IIIF handler's info, file and image routes. IIIF image requests support
// cropping and scaling; rotation and quality are ignored.
type Handler struct {
	config   Config
	logger   framework.Logger
	router   *mux.Router
	quotes   *quoteStore
	quoteErr error
}

// NewHandler creates a Handler. If logger is nil, requests are not logged.
func NewHandler(config Config, logger framework.Logger) *Handler {
	if logger == nil {
		logger = framework.NullLogger()
	}
	h := &Handler{config: config, logger: logger}
	h.quotes, h.quoteErr = openQuoteStore()
	router := mux.NewRouter()
	router.HandleFunc("/ping", h.servePing).Methods("GET")
	router.HandleFunc("/servervariables", h.serveServerVariables).Methods("GET")
	router.HandleFunc("/misc", h.serveMisc).Methods("GET")
	router.HandleFunc("/sqlite3", h.serveSQLite).Methods("GET")
	router.HandleFunc("/upload", h.serveUpload).Methods("POST")
	if config.IIIFPrefix != "" {
		iiif := router.PathPrefix("/" + config.IIIFPrefix).Subrouter()
		iiif.HandleFunc("/{identifier}", h.serveIIIFInfo).Methods("GET")
		iiif.HandleFunc("/{identifier}/info.json", h.serveIIIFInfo).Methods("GET")
		iiif.HandleFunc("/{identifier}/file", h.serveIIIFFile).Methods("GET")
		iiif.HandleFunc("/{identifier}/{region}/{size}/{rotation}/{quality}.{format}", h.serveIIIFImage).Methods("GET")
	}
	if config.DocRoot != "" {
		router.PathPrefix(strings.TrimSuffix("/"+config.FilePrefix, "/") + "/").HandlerFunc(h.serveDocRoot).Methods("GET")
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "No handler for "+r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	h.router = router
	return h
}

// Close releases the handler's database.
func (h *Handler) Close() error {
	if h.quotes == nil {
		return nil
	}
	return h.quotes.close()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.router.ServeHTTP(rec, r)
	h.logger.Printf("%s %s -> %d (%s)", r.Method, r.URL.RequestURI(), rec.status, time.Since(start).Round(time.Microsecond))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *Handler) servePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/text; charset=utf-8")
	_, _ = io.WriteString(w, h.config.PingEcho)
}

func (h *Handler) serveServerVariables(w http.ResponseWriter, r *http.Request) {
	clientIP, clientPort, _ := net.SplitHostPort(r.RemoteAddr)
	port, _ := strconv.Atoi(clientPort)
	vars := servicedef.ServerVariables{
		StatusResponse: servicedef.StatusResponse{Status: servicedef.StatusOK},
		Config: servicedef.ServerVariablesConfig{
			Port:        h.config.Port,
			SSLPort:     h.config.SSLPort,
			NThreads:    h.config.NThreads,
			KeepAlive:   h.config.KeepAlive,
			MaxPostSize: servicedef.FormatDataSize(h.config.MaxPostSize),
			ScriptDir:   h.config.ScriptDir,
			DocRoot:     h.config.DocRoot,
		},
		Server: servicedef.ServerVariablesServer{
			Method:     r.Method,
			Host:       r.Host,
			ClientIP:   clientIP,
			ClientPort: port,
			URI:        r.URL.Path,
			Secure:     r.TLS != nil,
			HasOpenSSL: h.config.SSLPort != 0,
			Cookies:    make(map[string]string),
			Header:     make(map[string]string),
			GetParams:  make(map[string]string),
		},
	}
	for _, c := range r.Cookies() {
		vars.Server.Cookies[c.Name] = c.Value
	}
	for name := range r.Header {
		vars.Server.Header[strings.ToLower(name)] = r.Header.Get(name)
	}
	vars.Server.Header["host"] = r.Host
	for name := range r.URL.Query() {
		vars.Server.GetParams[name] = r.URL.Query().Get(name)
	}
	writeJSON(w, http.StatusOK, vars)
}

func (h *Handler) serveMisc(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("jwt")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing jwt parameter")
		return
	}
	if _, err := verifyToken(token, h.config.JWTKey); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
		return
	}
	newToken, err := newMiscToken(h.config.JWTKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	id1, id2 := uuid.New(), uuid.New()
	writeJSON(w, http.StatusOK, servicedef.MiscResponse{
		StatusResponse: servicedef.StatusResponse{Status: servicedef.StatusOK},
		UUID:           id1.String(),
		UUID62:         uuidBase62(id1),
		UUID2:          id2.String(),
		UUID62_2:       uuidBase62(id2),
		JWT:            newToken,
	})
}

func (h *Handler) serveSQLite(w http.ResponseWriter, r *http.Request) {
	if h.quoteErr != nil {
		writeError(w, http.StatusInternalServerError, "Database unavailable: "+h.quoteErr.Error())
		return
	}
	result, err := h.quotes.all()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, servicedef.SQLiteResponse{
		StatusResponse: servicedef.StatusResponse{Status: servicedef.StatusOK},
		Result:         result,
	})
}

func (h *Handler) serveUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart request: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file in upload")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	mimeType := header.Header.Get("Content-Type")
	stored := servicedef.UploadFile{
		OrigName:    header.Filename,
		FileName:    h.storedName(header.Filename, mimeType),
		MimeType:    mimeType,
		FileSize:    int64(len(data)),
		Consistency: mimeTypeConsistent(mimeType, data),
	}
	if dir := h.uploadDir(); dir != "" {
		if err := os.WriteFile(filepath.Join(dir, stored.FileName), data, 0o644); err != nil { //nolint:gosec
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, servicedef.UploadResponse{
		StatusResponse: servicedef.StatusResponse{Status: servicedef.StatusOK},
		UploadFile:     stored,
		Count:          1,
		Files:          []servicedef.UploadFile{stored},
	})
}

// Uploaded images are stored by the IIIF handler as JPEG 2000, so their stored name gets a .jp2
// extension. The mock keeps the original bytes.
func (h *Handler) storedName(origName, mimeType string) string {
	if h.config.IIIFPrefix != "" && strings.HasPrefix(mimeType, "image/") {
		return "_" + strings.TrimSuffix(origName, filepath.Ext(origName)) + ".jp2"
	}
	return "_" + origName
}

func (h *Handler) uploadDir() string {
	if h.config.ImgRoot != "" {
		return h.config.ImgRoot
	}
	return h.config.TmpDir
}

// mimeTypeConsistent reports whether the declared type agrees with what the content looks like,
// allowing for the declared type to be a more general one such as text/plain for a CSV file.
func mimeTypeConsistent(declared string, data []byte) bool {
	declaredBase := strings.TrimSpace(strings.Split(declared, ";")[0])
	if declaredBase == "" {
		return false
	}
	for t := mimetype.Detect(data); t != nil; t = t.Parent() {
		if t.Is(declaredBase) {
			return true
		}
	}
	return false
}

func (h *Handler) serveIIIFFile(w http.ResponseWriter, r *http.Request) {
	h.serveFromImgRoot(w, r, mux.Vars(r)["identifier"])
}

func (h *Handler) serveFromImgRoot(w http.ResponseWriter, r *http.Request, identifier string) {
	if isDenied(identifier) {
		writeError(w, http.StatusUnauthorized, "Unauthorized access")
		return
	}
	h.serveFile(w, r, h.config.ImgRoot, identifier)
}

func (h *Handler) serveDocRoot(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	if h.config.FilePrefix != "" {
		name = strings.TrimPrefix(name, "/"+h.config.FilePrefix)
	}
	h.serveFile(w, r, h.config.DocRoot, name)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, root, name string) {
	clean := path.Clean("/" + name)
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "File not found: "+clean)
		} else {
			writeError(w, http.StatusForbidden, err.Error())
		}
		return
	}
	defer f.Close() //nolint:errcheck
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "File not found: "+clean)
		return
	}
	// ServeContent handles Range requests.
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	data := helpers.AsJSON(value)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, servicedef.StatusResponse{Status: "ERROR", Message: message})
}
