package config

import (
	"os"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Filename is the name of the optional config file in the source root
const Filename = "cbuild.toml"

// Config describes all configuration options. Command line flags override these values.
type Config struct {
	BuildDir         string `toml:"build_dir" default:"build" usage:"Build directory, relative to the source root"`
	Generator        string `toml:"generator" usage:"CMake generator; detected from the host platform if empty"`
	TolerateMemcheck bool   `toml:"tolerate_memcheck" default:"false" usage:"Succeed even if the memory check fails"`
	Script           string `toml:"script" default:"driver.star" usage:"Driver script, relative to the source root"`
	ArchiveLogs      string `toml:"archive_logs" usage:"Pack the CTest logs into this .tar.xz (or .tar.br) file after the run"`
	Progress         bool   `toml:"progress" default:"true" usage:"Show a spinner while a stage runs"`
	Log              struct {
		Level string `toml:"level" default:"info"`
		JSON  bool   `toml:"json" default:"false" usage:"Output JSONND instead of pretty console messages"`
	} `toml:"log"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object. The config
// file is read from dir if it exists.
func Loader(dir string) (*Config, *aconfig.Loader) {
	files := []string{}
	configFile := filepath.Join(dir, Filename)
	if _, err := os.Stat(configFile); err == nil {
		files = append(files, configFile)
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CBUILD",
		SkipFlags: true,
		Files:     files,
		// CBUILD_DEBUG is read by the console writer
		AllowUnknownEnvs: true,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the config from the environment and the optional config file in dir
func Load(dir string) (*Config, error) {
	cfg, loader := Loader(dir)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.BuildDir == "" {
		return eris.New(`build_dir can't be empty`)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}
