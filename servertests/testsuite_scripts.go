package servertests

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/cserve-project/cserve-test-harness/framework/client"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

const (
	sqliteQuoteKey = "1c1dcc9d-8e80-43a6-8421-56c5b5f42de7"
	sqliteQuote    = "Though this be madness, yet there is method in 't. Will you walk out of the air, my lord?"
)

func doScriptTests(t *ldtest.T) {
	t.RequireFeature(servicedef.FeatureScripts)

	t.Run("servervariables", doServerVariablesTests)
	t.Run("misc", doMiscScriptTest)
	t.Run("sqlite3", doSQLiteScriptTest)
	t.Run("filefunctions", doFileFunctionsTest)
}

func getServerVariables(t *ldtest.T, options ...client.RequestOption) servicedef.ServerVariables {
	t.Helper()
	resp, err := requireContext(t).Client.Get("/servervariables", options...)
	require.NoError(t, err)
	var vars servicedef.ServerVariables
	require.NoError(t, resp.DecodeJSON(&vars))
	t.Debug("servervariables: %s", helpers.CanonicalizedJSONString(helpers.AsJSONValue(vars)))
	m.In(t).Assert(vars.Status, m.Equal(servicedef.StatusOK))
	return vars
}

func doServerVariablesTests(t *ldtest.T) {
	requireRoute(t, "/servervariables")
	c := requireContext(t)
	host := fmt.Sprintf("localhost:%d", c.Config.Port())

	t.Run("config", func(t *ldtest.T) {
		vars := getServerVariables(t)
		m.In(t).For("port").Assert(vars.Config.Port, m.Equal(c.Config.Port()))
		m.In(t).For("scriptdir").Assert(vars.Config.ScriptDir, m.Equal(c.Config.Value(servicedef.EnvScriptDir)))
		m.In(t).For("docroot").Assert(vars.Config.DocRoot, m.Equal(c.Config.Value(servicedef.EnvDocRoot)))
		if s, ok := c.Config.Get(servicedef.EnvKeepAlive); ok {
			n, _ := strconv.Atoi(s)
			m.In(t).For("keep_alive").Assert(vars.Config.KeepAlive, m.Equal(n))
		}
		if s, ok := c.Config.Get(servicedef.EnvNThreads); ok {
			n, _ := strconv.Atoi(s)
			m.In(t).For("nthreads").Assert(vars.Config.NThreads, m.Equal(n))
		}
		if s, ok := c.Config.Get(servicedef.EnvMaxPostSize); ok {
			m.In(t).For("max_post_size").Assert(vars.Config.MaxPostSize, m.Equal(servicedef.FormatDataSize(s)))
		}
		if vars.Server.HasOpenSSL {
			sslPort, _ := c.Config.SecurePort()
			m.In(t).For("ssl_port").Assert(vars.Config.SSLPort, m.Equal(sslPort))
		}
	})

	t.Run("request", func(t *ldtest.T) {
		vars := getServerVariables(t, client.Query("param", "all"))
		m.In(t).For("method").Assert(vars.Server.Method, m.Equal("GET"))
		m.In(t).For("host").Assert(vars.Server.Host, m.Equal(host))
		m.In(t).For("client_ip").Assert(vars.Server.ClientIP, m.AnyOf(m.Equal("127.0.0.1"), m.Equal("::1")))
		m.In(t).For("client_port").Assert(vars.Server.ClientPort, m.Not(m.Equal(0)))
		m.In(t).For("uri").Assert(vars.Server.URI, m.Equal("/servervariables"))
		m.In(t).For("secure").Assert(vars.Server.Secure, m.Equal(false))
		m.In(t).For("get").Assert(vars.Server.GetParams["param"], m.Equal("all"))
		m.In(t).For("host header").Assert(vars.Server.Header["host"], m.Equal(host))
	})

	t.Run("secure", func(t *ldtest.T) {
		t.RequireFeature(servicedef.FeatureTLS)
		vars := getServerVariables(t, client.Secure())
		m.In(t).For("secure").Assert(vars.Server.Secure, m.Equal(true))
	})

	t.Run("cookies", func(t *ldtest.T) {
		vars := getServerVariables(t, client.Cookie("keks", "abcdefg"))
		m.In(t).Assert(vars.Server.Cookies["keks"], m.Equal("abcdefg"))
	})
}

func doMiscScriptTest(t *ldtest.T) {
	requireRoute(t, "/misc")
	c := requireContext(t)
	key := c.Config.Value(servicedef.EnvJWTKey)
	if key == "" {
		t.SkipWithReason("server has no JWT key")
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"key": "Dies ist ein Testtoken"}).
		SignedString([]byte(key))
	require.NoError(t, err)

	resp, err := c.Client.Get("/misc", client.Query("jwt", token))
	require.NoError(t, err)
	var misc servicedef.MiscResponse
	require.NoError(t, resp.DecodeJSON(&misc))
	m.In(t).Assert(misc.Status, m.Equal(servicedef.StatusOK))
	for name, value := range map[string]string{
		"uuid": misc.UUID, "uuid62": misc.UUID62, "uuid_2": misc.UUID2, "uuid62_2": misc.UUID62_2,
	} {
		m.In(t).For(name).Assert(value, m.Not(m.Equal("")))
	}

	parsed, err := jwt.Parse(misc.JWT, func(*jwt.Token) (interface{}, error) { return []byte(key), nil },
		jwt.WithAudience(servicedef.MiscTokenAudience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	m.In(t).For("iss").Assert(claims["iss"], m.Equal(servicedef.MiscTokenIssuer))
	m.In(t).For("jti").Assert(claims["jti"], m.Equal(servicedef.MiscTokenID))
	m.In(t).For("key").Assert(claims["key"], m.Equal(servicedef.MiscTokenKey))
	m.In(t).For("prn").Assert(claims["prn"], m.Equal(servicedef.MiscTokenSubject))
}

func doSQLiteScriptTest(t *ldtest.T) {
	t.RequireFeature(servicedef.FeatureSQLite)
	resp, err := requireContext(t).Client.Get("/sqlite3")
	require.NoError(t, err)
	var result servicedef.SQLiteResponse
	require.NoError(t, resp.DecodeJSON(&result))
	m.In(t).Assert(result.Status, m.Equal(servicedef.StatusOK))
	m.In(t).Assert(result.Result[sqliteQuoteKey], m.Equal(sqliteQuote))
}

func doFileFunctionsTest(t *ldtest.T) {
	requireRoute(t, "/filefunctions")
	value, err := requireContext(t).Client.GetJSON("/filefunctions")
	require.NoError(t, err)
	m.In(t).Assert(value.GetByKey("status").StringValue(), m.Equal(servicedef.StatusOK))

	fs := value.GetByKey("fs")
	m.In(t).For("cwd").Assert(fs.GetByKey("cwd").StringValue(), m.Not(m.Equal("")))
	m.In(t).For("ftype1").Assert(fs.GetByKey("ftype1").StringValue(), m.Equal("CHARDEV"))
	m.In(t).For("ftype2").Assert(fs.GetByKey("ftype2").StringValue(), m.Equal("DIRECTORY"))
	m.In(t).For("modtime").Assert(fs.GetByKey("modtime").IsNull(), m.Equal(false))

	var dirList []string
	for _, v := range fs.GetByKey("dirlist").AsValueArray().AsSlice() {
		dirList = append(dirList, v.StringValue())
	}
	for _, dir := range []string{"certificate", "scripts", "docroot"} {
		assert.Contains(t, dirList, dir)
	}
}
