package driver

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// StageName identifies one step of the pipeline
type StageName string

const (
	StageConfigure StageName = "configure"
	StageBuild     StageName = "build"
	StageTest      StageName = "test"
	StageMemcheck  StageName = "memcheck"
)

// MemcheckNote is appended to the diagnostics of a tolerated memory check failure
const MemcheckNote = "memory checking is not possible"

var (
	// ErrUnsupportedPlatform is returned when no generator is known for the host platform
	// and none was configured explicitly.
	ErrUnsupportedPlatform = eris.New("no CMake generator is known for this platform")

	// ErrUnsafeBuildDir is returned when the build directory would contain the source tree.
	ErrUnsafeBuildDir = eris.New("refusing to use a build directory that contains the source directory")
)

// Stage is a single external tool invocation
type Stage struct {
	Name StageName
	Args []string
}

func (s Stage) String() string {
	return fmt.Sprintf("%s: %s", s.Name, strings.Join(s.Args, " "))
}

// Define is a CMake cache entry passed to the configure stage as -D<name>[:<type>]=<value>
type Define struct {
	Name  string
	Type  string
	Value string
}

// Arg formats the definition as a CMake command line argument
func (d Define) Arg() string {
	if d.Type != "" {
		return fmt.Sprintf("-D%s:%s=%s", d.Name, d.Type, d.Value)
	}
	return fmt.Sprintf("-D%s=%s", d.Name, d.Value)
}

// StageResult describes the outcome of a single stage
type StageResult struct {
	Stage    Stage
	Output   string
	Err      error
	Duration time.Duration
	// Tolerated is set for a failed memory check that didn't fail the run
	Tolerated bool
}

// Failed returns true if the stage's tool did not succeed
func (r StageResult) Failed() bool {
	return r.Err != nil
}

// Result collects the stage results of a run
type Result struct {
	Stages   []StageResult
	ExitCode int
}

// Failed returns the result of the stage that failed the run, if any
func (r *Result) Failed() *StageResult {
	for idx := range r.Stages {
		if r.Stages[idx].Failed() && !r.Stages[idx].Tolerated {
			return &r.Stages[idx]
		}
	}
	return nil
}

// StageFailure is returned when an external tool fails. Output holds the tool's combined
// stdout and stderr.
type StageFailure struct {
	Stage  StageName
	Output string
	Err    error
}

func (f *StageFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("stage %s failed: %s", f.Stage, f.Err.Error())
	}
	return fmt.Sprintf("stage %s failed", f.Stage)
}

func (f *StageFailure) Unwrap() error {
	return f.Err
}
