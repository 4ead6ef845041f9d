package mockserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cserve-project/cserve-test-harness/servicedef"
)

func makeTestConfig(t *testing.T) Config {
	docroot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docroot, "test.html"), []byte("<html>hi</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docroot, "range.dat"), []byte("0123456789B0123456789"), 0o644))
	imgroot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(imgroot, "test_allow.csv"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(imgroot, "test_deny.csv"), []byte("x"), 0o644))
	return Config{
		Port:       8080,
		DocRoot:    docroot,
		PingEcho:   "PONG",
		ImgRoot:    imgroot,
		IIIFPrefix: "iiif",
	}
}

func newTestHandler(t *testing.T, config Config) *Handler {
	h := NewHandler(config, nil)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func doGet(t *testing.T, h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	rec := doGet(t, newTestHandler(t, makeTestConfig(t)), "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PONG", rec.Body.String())
}

func TestDocRootFile(t *testing.T) {
	rec := doGet(t, newTestHandler(t, makeTestConfig(t)), "/test.html", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>hi</html>", rec.Body.String())
}

func TestDocRootRange(t *testing.T) {
	rec := doGet(t, newTestHandler(t, makeTestConfig(t)), "/range.dat", map[string]string{"Range": "bytes=5-14"})
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "56789B0123", rec.Body.String())
}

func TestDocRootNotFoundHasJSONMessage(t *testing.T) {
	rec := doGet(t, newTestHandler(t, makeTestConfig(t)), "/gaga.html", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var r servicedef.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "ERROR", r.Status)
	assert.Contains(t, r.Message, "gaga.html")
}

func TestDocRootCannotEscape(t *testing.T) {
	rec := doGet(t, newTestHandler(t, makeTestConfig(t)), "/../../etc/passwd", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServerVariables(t *testing.T) {
	req := httptest.NewRequest("GET", "/servervariables?param=all", nil)
	req.AddCookie(&http.Cookie{Name: "keks", Value: "abcdefg"})
	rec := httptest.NewRecorder()
	newTestHandler(t, makeTestConfig(t)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var vars servicedef.ServerVariables
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vars))
	assert.Equal(t, servicedef.StatusOK, vars.Status)
	assert.Equal(t, 8080, vars.Config.Port)
	assert.Equal(t, "GET", vars.Server.Method)
	assert.Equal(t, "/servervariables", vars.Server.URI)
	assert.False(t, vars.Server.Secure)
	assert.Equal(t, "all", vars.Server.GetParams["param"])
	assert.Equal(t, "abcdefg", vars.Server.Cookies["keks"])
}

func TestIIIFFileAllowAndDeny(t *testing.T) {
	h := newTestHandler(t, makeTestConfig(t))

	rec := doGet(t, h, "/iiif/test_allow.csv/file", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a,b\n1,2\n", rec.Body.String())

	rec = doGet(t, h, "/iiif/test_deny.csv/file", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doGet(t, h, "/iiif/DenyLeaves.jpg/full/max/0/default.jpg", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIIIFImageReturnsSourceFile(t *testing.T) {
	config := makeTestConfig(t)
	source := filepath.Join(config.ImgRoot, "Leaves.jpg")
	writeImage(t, source, blockImage(32, 8))
	h := newTestHandler(t, config)
	rec := doGet(t, h, "/iiif/Leaves.jpg/full/max/0/default.jpg", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	content, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestUploadStoresFileAndReportsMetadata(t *testing.T) {
	config := makeTestConfig(t)
	content := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00rest of a jpeg")

	for _, p := range []struct {
		mimeType    string
		consistency bool
		storedName  string
	}{
		{"image/jpeg", true, "_tux.jp2"},
		{"text/plain", false, "_tux.jpg"},
	} {
		t.Run(p.mimeType, func(t *testing.T) {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			partHeader := make(textproto.MIMEHeader)
			partHeader.Set("Content-Disposition", `form-data; name="file"; filename="tux.jpg"`)
			partHeader.Set("Content-Type", p.mimeType)
			part, err := mw.CreatePart(partHeader)
			require.NoError(t, err)
			_, _ = part.Write(content)
			require.NoError(t, mw.Close())

			req := httptest.NewRequest("POST", "/upload", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := httptest.NewRecorder()
			newTestHandler(t, config).ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var r servicedef.UploadResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
			assert.Equal(t, servicedef.StatusOK, r.Status)
			assert.Equal(t, 1, r.Count)
			assert.Equal(t, "tux.jpg", r.OrigName)
			assert.Equal(t, p.mimeType, r.MimeType)
			assert.Equal(t, int64(len(content)), r.FileSize)
			assert.Equal(t, p.consistency, r.Consistency)

			assert.Equal(t, p.storedName, r.FileName)
			require.Len(t, r.Files, 1)
			assert.Equal(t, p.storedName, r.Files[0].FileName)
			stored, err := os.ReadFile(filepath.Join(config.ImgRoot, p.storedName))
			require.NoError(t, err)
			assert.Equal(t, content, stored)
		})
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	config := makeTestConfig(t)
	config.DocRoot = ""
	rec := doGet(t, newTestHandler(t, config), "/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `"status":"ERROR"`)
}

func TestUploadOutsideIIIFKeepsName(t *testing.T) {
	config := makeTestConfig(t)
	config.IIIFPrefix = ""
	config.ImgRoot = ""
	config.TmpDir = t.TempDir()
	assert.Equal(t, "_tux.jpg", newTestHandler(t, config).storedName("tux.jpg", "image/jpeg"))
}

func TestMimeTypeConsistent(t *testing.T) {
	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00rest of a jpeg")
	assert.True(t, mimeTypeConsistent("image/jpeg", jpeg))
	assert.False(t, mimeTypeConsistent("text/plain", jpeg))
	assert.True(t, mimeTypeConsistent("text/plain; charset=utf-8", []byte("just some text\n")))
	assert.False(t, mimeTypeConsistent("", jpeg))
}

func TestSQLiteReturnsQuotes(t *testing.T) {
	rec := doGet(t, newTestHandler(t, makeTestConfig(t)), "/sqlite3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var r struct {
		Status string            `json:"status"`
		Result map[string]string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, servicedef.StatusOK, r.Status)
	assert.Equal(t, "Though this be madness, yet there is method in 't. Will you walk out of the air, my lord?",
		r.Result["1c1dcc9d-8e80-43a6-8421-56c5b5f42de7"])
}

func TestMiscValidatesAndIssuesTokens(t *testing.T) {
	config := makeTestConfig(t)
	config.JWTKey = "UP4014, the biggest steam engine"
	h := newTestHandler(t, config)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"key": "Dies ist ein Testtoken"}).
		SignedString([]byte(config.JWTKey))
	require.NoError(t, err)

	rec := doGet(t, h, "/misc?jwt="+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var r map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, servicedef.StatusOK, r["status"])
	for _, key := range []string{"uuid", "uuid62", "uuid_2", "uuid62_2"} {
		assert.NotEmpty(t, r[key], key)
	}
	assert.NotEqual(t, r["uuid"], r["uuid_2"])

	claims, err := verifyToken(r["jwt"], config.JWTKey)
	require.NoError(t, err)
	assert.Equal(t, servicedef.MiscTokenIssuer, claims["iss"])
	assert.Equal(t, servicedef.MiscTokenKey, claims["key"])

	rec = doGet(t, h, "/misc?jwt=not.a.token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doGet(t, h, "/misc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUUIDBase62(t *testing.T) {
	assert.Equal(t, "0", uuidBase62(uuid.Nil))
	assert.Equal(t, "1", uuidBase62(uuid.UUID{15: 1}))
	assert.Equal(t, "z", uuidBase62(uuid.UUID{15: 61}))
	assert.Equal(t, "10", uuidBase62(uuid.UUID{15: 62}))
}
