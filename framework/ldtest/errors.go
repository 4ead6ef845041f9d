package ldtest

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// ErrorWithStacktrace is a test failure with the frames that led to it. Only frames from this
// module's own packages are kept.
type ErrorWithStacktrace struct {
	Message    string
	Stacktrace []StacktraceInfo
}

type StacktraceInfo struct {
	FileName string
	Package  string
	Function string
	Line     int
}

func (e ErrorWithStacktrace) Error() string { return e.Message }

// String shows the frame with the package path relative to the module, for instance
// "servertests.doIIIFTests.func3 (testsuite_iiif.go:42)".
func (s StacktraceInfo) String() string {
	return fmt.Sprintf("%s.%s (%s:%d)", relativePackageName(s.Package), s.Function, s.FileName, s.Line)
}

var assertTracePrefix = regexp.MustCompile(`^(?s:\s*Error Trace:.*\sError:\s*)`)

// transformError replaces the file/line header that testify puts in front of its messages with
// our own stacktrace.
func transformError(err error, stacktrace []StacktraceInfo) error {
	message := err.Error()
	if strings.Contains(message, "Error Trace:") {
		message = strings.TrimSpace(assertTracePrefix.ReplaceAllLiteralString(message, ""))
	}
	if len(stacktrace) == 0 {
		return errors.New(message)
	}
	return ErrorWithStacktrace{Message: message, Stacktrace: stacktrace}
}

func currentPackageName() string {
	pc, _, _, ok := runtime.Caller(0)
	if !ok {
		return "?"
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "?"
	}
	packageName, _ := parsePackageAndFunctionName(f.Name())
	return packageName
}

// modulePath is the module prefix of this package, derived from its import path
// (".../framework/ldtest").
func modulePath() string {
	p := currentPackageName()
	return strings.TrimSuffix(p, "/framework/ldtest")
}

func relativePackageName(packageName string) string {
	return strings.TrimPrefix(packageName, modulePath()+"/")
}

func isModulePackage(packageName string) bool {
	root := modulePath()
	return packageName == root || strings.HasPrefix(packageName, root+"/")
}

// getStacktrace returns the caller frames up to the enclosing ldtest.Run. Frames outside the
// module (testify, the Go runtime) are always dropped. Frames from ldtest itself are dropped
// unless includeLDTestCode is set, and so are the named helper functions.
func getStacktrace(includeLDTestCode bool, helperFns []string) []StacktraceInfo {
	var callers []StacktraceInfo
	currentPackage := currentPackageName()
	for i := 1; ; i++ { // 0 is getStacktrace itself
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		f := runtime.FuncForPC(pc)
		if f == nil {
			break
		}
		packageName, functionName := parsePackageAndFunctionName(f.Name())
		if packageName == currentPackage && functionName == "Run" {
			break
		}
		if !isModulePackage(packageName) ||
			(!includeLDTestCode && packageName == currentPackage) ||
			isHelper(f.Name(), helperFns) {
			continue
		}
		callers = append(callers, StacktraceInfo{
			FileName: file[strings.LastIndex(file, "/")+1:],
			Package:  packageName,
			Function: functionName,
			Line:     line,
		})
	}
	return callers
}

func isHelper(fullFunctionName string, helperFns []string) bool {
	for _, h := range helperFns {
		if h == fullFunctionName {
			return true
		}
	}
	return false
}

func parsePackageAndFunctionName(fullName string) (string, string) {
	lastSlash := strings.LastIndex(fullName, "/")
	firstDotAfterSlash := strings.Index(fullName[lastSlash+1:], ".")
	packageName := fullName[0 : lastSlash+firstDotAfterSlash+1]
	functionName := fullName[len(packageName)+1:]
	return packageName, functionName
}
