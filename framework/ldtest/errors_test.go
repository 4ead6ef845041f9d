package ldtest

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cserve-project/cserve-test-harness/framework/ldtest/internal"
)

func TestStacktrace(t *testing.T) {
	_ = Run(TestConfiguration{}, func(ldt *T) {
		ldt.Run("without filtering", func(ldt *T) {
			stack := getStacktrace(true, nil)
			assert.Greater(t, len(stack), 1)
			assert.Equal(t, currentPackageName(), stack[0].Package)
			assert.Contains(t, stack[0].Function, "TestStacktrace.")
			assert.Equal(t, currentPackageName(), stack[1].Package)
			assert.Equal(t, "(*T).run", stack[1].Function)
		})

		ldt.Run("auto-filtering removes ldtest methods", func(ldt *T) {
			internal.RunAction(func() {
				stack := getStacktrace(false, nil)
				assert.Len(t, stack, 1)
				// The ldtest stuff (including this test) and the Go runtime stuff below ldt.Run are
				// stripped out, leaving only internal.RunAction which isn't in ldtest.
				assert.Equal(t, currentPackageName()+"/internal", stack[0].Package)
				assert.Equal(t, "RunAction", stack[0].Function)
			})
		})

		ldt.Run("frames outside the module are dropped", func(ldt *T) {
			var stack []StacktraceInfo
			sort.Search(1, func(int) bool {
				stack = getStacktrace(true, nil)
				return true
			})
			require.NotEmpty(t, stack)
			for _, s := range stack {
				assert.True(t, isModulePackage(s.Package), "unexpected frame %s", s)
			}
		})

		ldt.Run("filter out designated helpers", func(ldt *T) {
			helperFunc1(func() {
				helperFunc2(func() {
					stack := getStacktrace(true, []string{currentPackageName() + ".helperFunc2"})
					foundFunc1 := false
					for _, s := range stack {
						if s.Package == currentPackageName() && s.Function == "helperFunc1" {
							foundFunc1 = true
						} else if s.Package == currentPackageName() && s.Function == "helperFunc2" {
							require.Fail(t, "helperFunc2 should not have been in stacktrace", "stacktrace: %+v", stack)
						}
					}
					assert.True(t, foundFunc1, "helperFunc1 should have been in stacktrace but wasn't", "stacktrace: +v", stack)
				})
			})
		})
	})
}

func helperFunc1(action func()) {
	action()
}

func helperFunc2(action func()) {
	action()
}

func TestStacktraceInfoStringIsRelativeToModule(t *testing.T) {
	s := StacktraceInfo{
		FileName: "testsuite_iiif.go",
		Package:  modulePath() + "/servertests",
		Function: "doIIIFTests.func3",
		Line:     42,
	}
	assert.Equal(t, "servertests.doIIIFTests.func3 (testsuite_iiif.go:42)", s.String())
	assert.True(t, isModulePackage(s.Package))
	assert.False(t, isModulePackage("github.com/stretchr/testify/assert"))
}

func TestTransformErrorStripsAssertTrace(t *testing.T) {
	err := transformError(errors.New("\n\tError Trace:\tx.go:1\n\tError:\tNot equal"), nil)
	assert.Equal(t, "Not equal", err.Error())

	stack := []StacktraceInfo{{FileName: "a.go", Package: modulePath(), Function: "f", Line: 1}}
	var es ErrorWithStacktrace
	require.True(t, errors.As(transformError(errors.New("bad"), stack), &es))
	assert.Equal(t, "bad", es.Message)
	assert.Equal(t, stack, es.Stacktrace)
}
