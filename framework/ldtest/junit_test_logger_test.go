package ldtest

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/cserve-project/cserve-test-harness/serviceinfo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJUnitTestLoggerWritesOneSuitePerTopLevelTest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	info := serviceinfo.ServerInfo{Executable: "cserver", Profile: "testserver", SessionID: "session-1"}
	logger := NewJUnitTestLogger(path, info, RegexFilters{})

	results := Run(TestConfiguration{TestLogger: logger}, func(ldt *T) {
		ldt.Run("ping", func(ldt1 *T) {
			ldt1.Run("plain", func(*T) {})
			ldt1.Run("tls", func(ldt2 *T) { ldt2.SkipWithReason("no tls") })
		})
		ldt.Run("upload", func(ldt1 *T) {
			ldt1.Run("jpeg", func(ldt2 *T) { ldt2.Errorf("bad status") })
		})
	})
	require.NoError(t, logger.EndLog(results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc jUnitXMLDocument
	require.NoError(t, xml.Unmarshal(data, &doc))

	require.Len(t, doc.Suites, 2)
	assert.Equal(t, "cserver tests: ping", doc.Suites[0].Name)
	assert.Equal(t, 0, doc.Suites[0].Failures)
	assert.Equal(t, "cserver tests: upload", doc.Suites[1].Name)
	assert.Equal(t, 1, doc.Suites[1].Failures)

	var skipped *jUnitXMLTestCase
	for i, tc := range doc.Suites[0].TestCases {
		if tc.Name == "ping/tls" {
			skipped = &doc.Suites[0].TestCases[i]
		}
	}
	require.NotNil(t, skipped)
	require.NotNil(t, skipped.SkipMessage)
	assert.Equal(t, "no tls", skipped.SkipMessage.Message)

	var sessionProp string
	for _, p := range doc.Suites[0].Properties {
		if p.Name == "tests.session.id" {
			sessionProp = p.Value
		}
	}
	assert.Equal(t, "session-1", sessionProp)
}

func TestMultiTestLoggerForwardsToAll(t *testing.T) {
	l1, l2 := &recordingTestLogger{}, &recordingTestLogger{}
	multi := &MultiTestLogger{Loggers: []TestLogger{l1, l2}}
	_ = Run(TestConfiguration{TestLogger: multi}, func(ldt *T) {
		ldt.Run("a", func(*T) {})
	})
	assert.Equal(t, []TestID{{"a"}}, l1.started)
	assert.Equal(t, []TestID{{"a"}}, l2.finished)
	assert.NoError(t, multi.EndLog(Results{}))
}
