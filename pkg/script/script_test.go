package script

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

func testCtx() context.Context {
	logger := zerolog.Nop()
	return driver.WithLogger(context.Background(), &logger)
}

func writeScript(t *testing.T, content string) (string, string) {
	t.Helper()

	root := t.TempDir()
	filename := filepath.Join(root, DefaultFilename)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0660))
	return filename, root
}

func TestRunCollectsSettings(t *testing.T) {
	filename, root := writeScript(t, `
build_type = option("build_type", "Debug", help = "CMAKE_BUILD_TYPE")

generator("Ninja")
define("CMAKE_BUILD_TYPE", build_type)
define("SHAMIR_TESTS", True)
define("SHAMIR_SHARES", 5)
define("SHAMIR_ROOT", resolve_path("//src"), type = "path")
setenv("CTEST_OUTPUT_ON_FAILURE", "1")

def configure():
    if getenv("CTEST_OUTPUT_ON_FAILURE") == "1":
        tolerate_memcheck()
`)

	settings, err := Run(testCtx(), filename, root, map[string]string{"build_type": "Release"})
	require.NoError(t, err)

	assert.Equal(t, "Ninja", settings.Generator)
	assert.Equal(t, []driver.Define{
		{Name: "CMAKE_BUILD_TYPE", Value: "Release"},
		{Name: "SHAMIR_TESTS", Type: "BOOL", Value: "ON"},
		{Name: "SHAMIR_SHARES", Value: "5"},
		{Name: "SHAMIR_ROOT", Type: "PATH", Value: filepath.ToSlash(filepath.Join(root, "src"))},
	}, settings.Defines)
	assert.Equal(t, "1", settings.Env["CTEST_OUTPUT_ON_FAILURE"])
	require.NotNil(t, settings.TolerateMemcheck)
	assert.True(t, *settings.TolerateMemcheck)

	require.Contains(t, settings.Options, "build_type")
	assert.Equal(t, "Debug", settings.Options["build_type"].Default())
	assert.Equal(t, "CMAKE_BUILD_TYPE", settings.Options["build_type"].Help)
}

func TestRunDefaultsWithoutOptions(t *testing.T) {
	filename, root := writeScript(t, `define("CMAKE_BUILD_TYPE", option("build_type", "Debug"))`)

	settings, err := Run(testCtx(), filename, root, nil)
	require.NoError(t, err)
	assert.Equal(t, []driver.Define{{Name: "CMAKE_BUILD_TYPE", Value: "Debug"}}, settings.Defines)
	assert.Nil(t, settings.TolerateMemcheck)
	assert.Empty(t, settings.Generator)
}

func TestRunRejectsUnknownOption(t *testing.T) {
	filename, root := writeScript(t, `option("build_type", "Debug")`)

	_, err := Run(testCtx(), filename, root, map[string]string{"shares": "3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shares")
}

func TestRunErrorBuiltin(t *testing.T) {
	filename, root := writeScript(t, `
def configure():
    error("valgrind is required")
`)

	_, err := Run(testCtx(), filename, root, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valgrind is required")
}

func TestRunOptionOutsideInitPhase(t *testing.T) {
	filename, root := writeScript(t, `
def configure():
    option("late")
`)

	_, err := Run(testCtx(), filename, root, nil)
	require.Error(t, err)
}

func TestRunSyntaxError(t *testing.T) {
	filename, root := writeScript(t, `define(`)

	_, err := Run(testCtx(), filename, root, nil)
	require.Error(t, err)
}

func TestReadYaml(t *testing.T) {
	filename, root := writeScript(t, `
define("BUILD_TYPE", read_yaml("ci.yml", "build.type", "Debug"))
define("FIRST_TARGET", read_yaml("ci.yml", "build.targets.0", "none"))
define("MISSING", read_yaml("ci.yml", "build.missing", "fallback"))
define("OUT_OF_RANGE", read_yaml("ci.yml", "build.targets.7", "none"))
tolerate_memcheck(read_yaml("ci.yml", "memcheck.optional", False))
`)
	require.NoError(t, os.WriteFile(filepath.Join(root, "ci.yml"), []byte(`
build:
  type: RelWithDebInfo
  targets:
    - shamir
    - tests
memcheck:
  optional: true
`), 0660))

	settings, err := Run(testCtx(), filename, root, nil)
	require.NoError(t, err)
	assert.Equal(t, []driver.Define{
		{Name: "BUILD_TYPE", Value: "RelWithDebInfo"},
		{Name: "FIRST_TARGET", Value: "shamir"},
		{Name: "MISSING", Value: "fallback"},
		{Name: "OUT_OF_RANGE", Value: "none"},
	}, settings.Defines)
	require.NotNil(t, settings.TolerateMemcheck)
	assert.True(t, *settings.TolerateMemcheck)
}

func TestPrependPathAndFileChecks(t *testing.T) {
	filename, root := writeScript(t, `
prepend_path("tools")

def configure():
    if isdir("tools") and not isfile("tools"):
        setenv("HAS_TOOLS", "yes")
    if isfile("driver.star"):
        setenv("HAS_SCRIPT", "yes")
`)
	require.NoError(t, os.Mkdir(filepath.Join(root, "tools"), 0770))

	settings, err := Run(testCtx(), filename, root, nil)
	require.NoError(t, err)
	assert.Equal(t, "yes", settings.Env["HAS_TOOLS"])
	assert.Equal(t, "yes", settings.Env["HAS_SCRIPT"])
	assert.Equal(t, filepath.Join(root, "tools")+string(os.PathListSeparator)+os.Getenv("PATH"), settings.Env["PATH"])
}

func TestRunRejectsDuplicateOption(t *testing.T) {
	filename, root := writeScript(t, `
option("build_type", "Debug")
option("build_type", "Release")
`)

	_, err := Run(testCtx(), filename, root, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already declared")
}

func TestLoadVcvarsOutsideWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("loads the real MSVC environment on Windows")
	}

	filename, root := writeScript(t, `
def configure():
    if not load_vcvars("x64"):
        setenv("MSVC", "missing")
`)

	settings, err := Run(testCtx(), filename, root, nil)
	require.NoError(t, err)
	assert.Equal(t, "missing", settings.Env["MSVC"])
}

func TestParseEnvDump(t *testing.T) {
	output := "**********************\r\n[vcvarsall.bat] Environment initialized for: 'x64'\r\n" +
		envMarker + "\r\nINCLUDE=C:\\VS\\include\r\nPath=C:\\VS\\bin;C:\\Windows\r\n=C:=C:\\src\r\n"

	vars, err := parseEnvDump(output)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"INCLUDE": `C:\VS\include`,
		"Path":    `C:\VS\bin;C:\Windows`,
	}, vars)

	_, err = parseEnvDump("The system cannot find the path specified.")
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	tolerate := true
	settings := &Settings{
		Generator:        "Ninja",
		Defines:          []driver.Define{{Name: "A", Value: "1"}},
		Env:              map[string]string{"CC": "gcc", "CXX": "g++"},
		TolerateMemcheck: &tolerate,
	}

	opts := driver.Options{
		Defines: []driver.Define{{Name: "B", Value: "2"}},
		Env:     map[string]string{"CC": "clang"},
	}
	settings.Apply(&opts)

	assert.Equal(t, "Ninja", opts.Generator)
	assert.Equal(t, []driver.Define{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}}, opts.Defines)
	assert.Equal(t, map[string]string{"CC": "clang", "CXX": "g++"}, opts.Env)
	assert.True(t, opts.TolerateMemcheckFailure)

	explicit := driver.Options{Generator: "Unix Makefiles"}
	settings.Apply(&explicit)
	assert.Equal(t, "Unix Makefiles", explicit.Generator)
}

func TestExists(t *testing.T) {
	filename, root := writeScript(t, ``)

	found, err := Exists(filename)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = Exists(filepath.Join(root, "missing.star"))
	require.NoError(t, err)
	assert.False(t, found)
}
