package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

func TestParseDefine(t *testing.T) {
	def, err := parseDefine("CMAKE_BUILD_TYPE=Debug")
	require.NoError(t, err)
	assert.Equal(t, driver.Define{Name: "CMAKE_BUILD_TYPE", Value: "Debug"}, def)

	def, err = parseDefine("ENABLE_TESTS:BOOL=ON")
	require.NoError(t, err)
	assert.Equal(t, driver.Define{Name: "ENABLE_TESTS", Type: "BOOL", Value: "ON"}, def)

	def, err = parseDefine("FLAGS=-O2 -g=3")
	require.NoError(t, err)
	assert.Equal(t, "-O2 -g=3", def.Value)

	def, err = parseDefine("EMPTY=")
	require.NoError(t, err)
	assert.Equal(t, "", def.Value)

	for _, arg := range []string{"", "NOVALUE", "=Debug", ":BOOL=ON", "NAME:=ON"} {
		_, err = parseDefine(arg)
		assert.Error(t, err, arg)
	}
}

func TestParseOptions(t *testing.T) {
	options, err := parseOptions([]string{"sanitizer=asan", "jobs=4", "extra=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"sanitizer": "asan",
		"jobs":      "4",
		"extra":     "a=b",
	}, options)

	_, err = parseOptions([]string{"build"})
	assert.Error(t, err)
}

func TestConsoleWriter(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(NewConsoleWriter(&out))

	logger.Info().Str("stage", "build").Msg("Running cmake --build .")
	assert.Contains(t, out.String(), "build: Running cmake --build .")

	out.Reset()
	logger.Error().Str("stage", "test").Msg("tests failed")
	assert.Contains(t, out.String(), "test: Error: tests failed")

	_, err := NewConsoleWriter(&out).Write([]byte("not json"))
	assert.Error(t, err)
}

func TestConsoleObserver(t *testing.T) {
	var out bytes.Buffer
	observer := newConsoleObserver(&out, false)

	stage := driver.Stage{Name: driver.StageMemcheck, Args: []string{"ctest", "-T", "memcheck"}}
	observer.StageStarted(stage)
	assert.Contains(t, out.String(), "memcheck")

	out.Reset()
	observer.StageFinished(driver.StageResult{Stage: stage, Duration: 1500 * time.Millisecond})
	assert.Contains(t, out.String(), "memcheck finished in 1.5s")

	out.Reset()
	observer.StageFinished(driver.StageResult{
		Stage:     stage,
		Err:       assert.AnError,
		Duration:  2 * time.Second,
		Tolerated: true,
	})
	assert.Contains(t, out.String(), "memcheck failed after 2.0s (ignored)")
}

func TestLoadSettingsPrecedence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "CMakeLists.txt"), []byte("project(shamir C)\n"), 0660))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cbuild.toml"), []byte(`build_dir = "out"
generator = "Ninja"
tolerate_memcheck = true
archive_logs = "logs.tar.xz"

[log]
level = "debug"
`), 0660))
	t.Setenv("CBUILD_GENERATOR", "Unix Makefiles")

	require.NoError(t, rootCmd.ParseFlags([]string{
		"--source", root,
		"--build-dir", "custom",
		"--tolerate-memcheck=false",
	}))

	source, cfg, err := loadSettings(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, root, source)

	// flags beat the config file
	assert.Equal(t, "custom", cfg.BuildDir)
	assert.False(t, cfg.TolerateMemcheck)
	// environment beats the config file
	assert.Equal(t, "Unix Makefiles", cfg.Generator)
	// the config file beats the defaults
	assert.Equal(t, "logs.tar.xz", cfg.ArchiveLogs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "driver.star", cfg.Script)
	assert.True(t, cfg.Progress)
}
