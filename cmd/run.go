package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/netdebug/ShamirSecretSharing/pkg"
	"github.com/netdebug/ShamirSecretSharing/pkg/archive"
	"github.com/netdebug/ShamirSecretSharing/pkg/config"
	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
	"github.com/netdebug/ShamirSecretSharing/pkg/script"
)

// parseDefine parses a NAME[:TYPE]=VALUE argument the way CMake's -D does
func parseDefine(arg string) (driver.Define, error) {
	pos := strings.Index(arg, "=")
	if pos < 1 {
		return driver.Define{}, eris.Errorf("invalid definition %q, expected NAME[:TYPE]=VALUE", arg)
	}

	def := driver.Define{
		Name:  arg[:pos],
		Value: arg[pos+1:],
	}

	if typePos := strings.Index(def.Name, ":"); typePos > -1 {
		def.Type = def.Name[typePos+1:]
		def.Name = def.Name[:typePos]
		if def.Name == "" || def.Type == "" {
			return driver.Define{}, eris.Errorf("invalid definition %q, expected NAME[:TYPE]=VALUE", arg)
		}
	}

	return def, nil
}

// parseOptions turns key=value arguments into script option values
func parseOptions(args []string) (map[string]string, error) {
	options := make(map[string]string)
	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos < 1 {
			return nil, eris.Errorf("unexpected argument %q, expected option=value", part)
		}

		options[part[:pos]] = part[pos+1:]
	}

	return options, nil
}

// loadSettings finds the source root and merges config file, environment and flags
func loadSettings(cmd *cobra.Command) (string, *config.Config, error) {
	flags := cmd.Flags()
	root, err := flags.GetString("source")
	if err != nil {
		return "", nil, err
	}

	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, eris.Wrap(err, "failed to retrieve the current working directory")
		}

		root, err = pkg.FindSourceRoot(wd)
		if err != nil {
			return "", nil, err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}

	overrides := map[string]*string{
		"build-dir":    &cfg.BuildDir,
		"generator":    &cfg.Generator,
		"script":       &cfg.Script,
		"archive-logs": &cfg.ArchiveLogs,
		"log-level":    &cfg.Log.Level,
	}
	for name, dest := range overrides {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}

		*dest, err = flags.GetString(name)
		if err != nil {
			return "", nil, err
		}
	}

	if flags.Changed("tolerate-memcheck") {
		cfg.TolerateMemcheck, _ = flags.GetBool("tolerate-memcheck")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Lookup("no-progress") != nil {
		if noProgress, _ := flags.GetBool("no-progress"); noProgress {
			cfg.Progress = false
		}
	}

	err = cfg.Validate()
	if err != nil {
		return "", nil, err
	}

	return root, cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Log.JSON {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(NewConsoleWriter(os.Stderr))
	}

	return logger.Level(cfg.LogLevel()).With().Timestamp().Str("run", nanoid.New()).Logger()
}

func runPipeline(cmd *cobra.Command, args []string) error {
	options, err := parseOptions(args)
	if err != nil {
		return err
	}

	defineArgs, err := cmd.Flags().GetStringArray("define")
	if err != nil {
		return err
	}

	defines := make([]driver.Define, 0, len(defineArgs))
	for _, arg := range defineArgs {
		def, err := parseDefine(arg)
		if err != nil {
			return err
		}
		defines = append(defines, def)
	}

	root, cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = driver.WithLogger(ctx, &logger)

	opts := driver.Options{
		SourceDir:               root,
		BuildDir:                cfg.BuildDir,
		Generator:               cfg.Generator,
		Defines:                 defines,
		TolerateMemcheckFailure: cfg.TolerateMemcheck,
		Observer:                newConsoleObserver(os.Stderr, cfg.Progress && os.Getenv("CI") != "true"),
	}

	scriptPath := cfg.Script
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(root, scriptPath)
	}

	found, err := script.Exists(scriptPath)
	if err != nil {
		return err
	}

	if found {
		logger.Debug().Str("path", scriptPath).Msgf("Loading %s", scriptPath)
		settings, err := script.Run(ctx, scriptPath, root, options)
		if err != nil {
			logger.Error().Err(err).Msg("Driver script failed")
			return errReported
		}

		settings.Apply(&opts)
	} else if len(options) > 0 {
		return eris.Errorf("options were passed but %s does not exist", scriptPath)
	}

	d, err := driver.New(opts)
	if err != nil {
		return err
	}

	result, runErr := d.Run(ctx)
	if cfg.ArchiveLogs != "" {
		archiveLogs(&logger, d.BuildDir(), cfg.ArchiveLogs)
	}

	if runErr != nil {
		var failure *driver.StageFailure
		if errors.As(runErr, &failure) {
			// the tool's output has already been written to stderr
			logger.Debug().Err(runErr).Msg("Pipeline failed")
			return errReported
		}

		return runErr
	}

	logger.Debug().Int("stages", len(result.Stages)).Msg("Pipeline finished")
	return nil
}

func archiveLogs(logger *zerolog.Logger, buildDir, dest string) {
	logDir := filepath.Join(buildDir, "Testing")
	info, err := os.Stat(logDir)
	if err != nil || !info.IsDir() {
		logger.Warn().Str("path", logDir).Msgf("Skipping log archive since %s doesn't exist", logDir)
		return
	}

	count, err := archive.PackDir(dest, logDir)
	if err != nil {
		logger.Warn().Err(err).Msgf("Failed to archive %s", logDir)
		return
	}

	logger.Info().Str("path", dest).Msgf("Packed %d files into %s", count, dest)
}
