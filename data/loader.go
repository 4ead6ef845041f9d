package data

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/cserve-project/cserve-test-harness/framework/harness"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

//go:embed data-files
var dataFilesRoot embed.FS

const (
	dataBasePath    = "data-files"
	profilesDirName = "profiles"
)

// Profile is a named server configuration, together with the harness-side settings that go
// with it. Relative paths are relative to the working directory of the server process.
type Profile struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// RoutePrefix is inserted before the path of IIIF requests, such as "iiif".
	RoutePrefix string `json:"routePrefix"`

	// DocRoot is where the reference copies of the file handler's documents are.
	DocRoot string `json:"docRoot"`

	// ImgRoot is the IIIF handler's image directory.
	ImgRoot string `json:"imgRoot"`

	// DataDir holds local files that the tests upload or compare against.
	DataDir string `json:"dataDir"`

	// TmpDirs are emptied before the server starts.
	TmpDirs []string `json:"tmpDirs"`

	// CleanupGlobs match files that the tests create and that are removed after the run.
	CleanupGlobs []string `json:"cleanupGlobs"`

	// Env is the server configuration. Values may be written as strings, numbers, or booleans.
	Env map[string]ldvalue.Value `json:"env"`
}

// ProcessConfig builds the server's environment from the profile. The handler directory is not
// part of any profile, since it depends on where the server was built; overrides are applied
// last and take precedence.
func (p Profile) ProcessConfig(handlerDir string, overrides map[string]string) harness.ProcessConfig {
	values := make(map[string]string, len(p.Env)+len(overrides)+1)
	for k, v := range p.Env {
		values[k] = envString(v)
	}
	if handlerDir != "" {
		values[servicedef.EnvHandlerDir] = handlerDir
	}
	for k, v := range overrides {
		values[k] = v
	}
	return harness.NewProcessConfig(values)
}

func envString(v ldvalue.Value) string {
	switch v.Type() {
	case ldvalue.StringType:
		return v.StringValue()
	case ldvalue.NullType:
		return ""
	default:
		return v.JSONString()
	}
}

// ProfileNames returns the names of the built-in profiles.
func ProfileNames() []string {
	entries, err := dataFilesRoot.ReadDir(dataBasePath + "/" + profilesDirName)
	if err != nil {
		return nil
	}
	var ret []string
	for _, e := range entries {
		if name, ok := profileNameFromFile(e.Name()); ok {
			ret = append(ret, name)
		}
	}
	return helpers.Sorted(ret)
}

func profileNameFromFile(fileName string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		if strings.HasSuffix(fileName, ext) {
			return strings.TrimSuffix(fileName, ext), true
		}
	}
	return "", false
}

// LoadProfile reads one of the built-in profiles.
func LoadProfile(name string) (Profile, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		data, err := dataFilesRoot.ReadFile(path.Join(dataBasePath, profilesDirName, name+ext))
		if err == nil {
			return parseProfile(name, data)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Profile{}, err
		}
	}
	return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
}

// LoadProfileFile reads a profile from a JSON or YAML file.
func LoadProfileFile(filePath string) (Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	name, _ := profileNameFromFile(path.Base(strings.ReplaceAll(filePath, "\\", "/")))
	return parseProfile(name, data)
}

// LoadProfileByNameOrFile treats nameOrPath as a file path if such a file exists, and as the name
// of a built-in profile otherwise.
func LoadProfileByNameOrFile(nameOrPath string) (Profile, error) {
	if info, err := os.Stat(nameOrPath); err == nil && !info.IsDir() {
		return LoadProfileFile(nameOrPath)
	}
	return LoadProfile(nameOrPath)
}

func parseProfile(defaultName string, data []byte) (Profile, error) {
	var p Profile
	if err := ParseJSONOrYAML(data, &p); err != nil {
		return Profile{}, fmt.Errorf("error parsing profile %q: %w", defaultName, err)
	}
	if p.Name == "" {
		p.Name = defaultName
	}
	if len(p.Env) == 0 {
		return Profile{}, fmt.Errorf("profile %q has no env settings", p.Name)
	}
	return p, nil
}
