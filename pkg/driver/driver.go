package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Observer is notified before and after each stage runs
type Observer interface {
	StageStarted(stage Stage)
	StageFinished(result StageResult)
}

// Options configures a Driver
type Options struct {
	// SourceDir is the CMake source root (the directory containing the top-level CMakeLists.txt).
	SourceDir string
	// BuildDir is wiped and recreated on every run. Relative paths are resolved against SourceDir.
	// Defaults to "build".
	BuildDir string
	// Generator overrides the generator selected for the host platform.
	Generator string
	// GOOS identifies the host platform. Defaults to runtime.GOOS.
	GOOS    string
	Defines []Define
	// Env contains additional environment variables for all stages.
	Env map[string]string
	// TolerateMemcheckFailure reports a failed memory check but still finishes the run successfully.
	TolerateMemcheckFailure bool

	Stdout   io.Writer
	Stderr   io.Writer
	Runner   Runner
	Observer Observer
}

// Driver runs the configure, build, test and memcheck stages against a fresh build directory
type Driver struct {
	opts Options
}

// New validates the options and returns a driver for them
func New(opts Options) (*Driver, error) {
	if opts.SourceDir == "" {
		return nil, eris.New("no source directory configured")
	}

	sourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", opts.SourceDir)
	}
	opts.SourceDir = sourceDir

	if opts.BuildDir == "" {
		opts.BuildDir = "build"
	}
	if !filepath.IsAbs(opts.BuildDir) {
		opts.BuildDir = filepath.Join(opts.SourceDir, opts.BuildDir)
	}
	opts.BuildDir = filepath.Clean(opts.BuildDir)

	rel, err := filepath.Rel(opts.BuildDir, opts.SourceDir)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, eris.Wrapf(ErrUnsafeBuildDir, "build directory %s", opts.BuildDir)
	}

	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Runner == nil {
		opts.Runner = &ShellRunner{}
	}

	return &Driver{opts: opts}, nil
}

// BuildDir returns the absolute path of the build directory
func (d *Driver) BuildDir() string {
	return d.opts.BuildDir
}

// Generator returns the generator the configure stage will use
func (d *Driver) Generator() (string, error) {
	if d.opts.Generator != "" {
		return d.opts.Generator, nil
	}

	return SelectGenerator(d.opts.GOOS)
}

// Stages returns the pipeline in execution order. The configure stage's arguments are only
// valid if Generator() succeeds.
func (d *Driver) Stages() []Stage {
	generator, _ := d.Generator()

	configure := []string{"cmake", "-G", generator}
	for _, def := range d.opts.Defines {
		configure = append(configure, def.Arg())
	}
	configure = append(configure, d.opts.SourceDir)

	return []Stage{
		{Name: StageConfigure, Args: configure},
		{Name: StageBuild, Args: []string{"cmake", "--build", ".", "--target", "all"}},
		{Name: StageTest, Args: []string{"ctest", "-T", "Test"}},
		{Name: StageMemcheck, Args: []string{"ctest", "-T", "memcheck"}},
	}
}

// Prepare removes the build directory including all of its contents and creates it again
func (d *Driver) Prepare(ctx context.Context) error {
	buildDir := d.opts.BuildDir

	info, err := os.Lstat(buildDir)
	if err != nil && !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to check %s", buildDir)
	}

	if err == nil {
		if !info.IsDir() {
			return eris.Errorf("%s exists but is not a directory", buildDir)
		}

		Logger(ctx).Debug().Str("path", buildDir).Msgf("Removing %s", buildDir)
		err = os.RemoveAll(buildDir)
		if err != nil {
			return eris.Wrapf(err, "failed to remove %s", buildDir)
		}
	}

	err = os.MkdirAll(buildDir, 0770)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", buildDir)
	}

	return nil
}

func (d *Driver) env() []string {
	names := make([]string, 0, len(d.opts.Env))
	for name := range d.opts.Env {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]string, len(names))
	for idx, name := range names {
		env[idx] = fmt.Sprintf("%s=%s", name, d.opts.Env[name])
	}
	return env
}

func writeBlob(w io.Writer, text string) {
	if text == "" {
		return
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	io.WriteString(w, text)
}

func (d *Driver) runStage(ctx context.Context, stage Stage) StageResult {
	if d.opts.Observer != nil {
		d.opts.Observer.StageStarted(stage)
	}

	start := time.Now()
	result := StageResult{Stage: stage}

	if stage.Name == StageConfigure {
		if _, err := d.Generator(); err != nil {
			result.Output = err.Error()
			result.Err = err
		}
	}

	if result.Err == nil {
		result.Output, result.Err = d.opts.Runner.Run(ctx, d.opts.BuildDir, d.env(), stage.Args)
	}
	result.Duration = time.Since(start)
	result.Tolerated = result.Err != nil && stage.Name == StageMemcheck && d.opts.TolerateMemcheckFailure

	if d.opts.Observer != nil {
		d.opts.Observer.StageFinished(result)
	}
	return result
}

// Run prepares the build directory and executes all stages in order. The first failing stage
// stops the pipeline unless it's a tolerated memory check. The returned error is a *StageFailure
// if a tool failed.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	result := &Result{ExitCode: 1}

	if err := d.Prepare(ctx); err != nil {
		return result, err
	}

	for _, stage := range d.Stages() {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "pipeline interrupted")
		}

		logger := Logger(ctx).With().Str("stage", string(stage.Name)).Logger()
		logger.Info().Msgf("Running %s", strings.Join(stage.Args, " "))

		stageResult := d.runStage(ctx, stage)
		if !stageResult.Failed() {
			logger.Debug().Dur("duration", stageResult.Duration).Msg("done")
			writeBlob(d.opts.Stdout, stageResult.Output)
			result.Stages = append(result.Stages, stageResult)
			continue
		}

		if stageResult.Tolerated {
			result.Stages = append(result.Stages, stageResult)

			logger.Warn().Err(stageResult.Err).Msg("memory check failed, ignoring")
			writeBlob(d.opts.Stderr, stageResult.Output)
			writeBlob(d.opts.Stderr, MemcheckNote)
			continue
		}

		result.Stages = append(result.Stages, stageResult)
		writeBlob(d.opts.Stderr, stageResult.Output)

		return result, &StageFailure{
			Stage:  stage.Name,
			Output: stageResult.Output,
			Err:    stageResult.Err,
		}
	}

	result.ExitCode = 0
	return result, nil
}
