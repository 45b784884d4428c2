package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// errReported is returned by commands that already printed their failure
var errReported = eris.New("failure already reported")

var rootCmd = &cobra.Command{
	Use:   "cbuild [option=value...]",
	Short: "Builds and tests the project with CMake and CTest",
	Long: `This command recreates the build directory, configures it with CMake, builds the "all" target
and runs CTest followed by a memory check. Each stage's output is printed once it finishes.

A driver.star file in the source root can adjust the pipeline. Its options are passed as
option=value arguments.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runPipeline,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("source", "s", "", "CMake source root (default: closest directory with a top-level CMakeLists.txt)")
	flags.StringP("build-dir", "B", "", "build directory, relative to the source root (default \"build\")")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.Bool("log-json", false, "log JSON lines instead of console messages")

	rootCmd.Flags().StringP("generator", "G", "", "CMake generator (default: detected from the host platform)")
	rootCmd.Flags().StringArrayP("define", "D", nil, "CMake cache entry NAME[:TYPE]=VALUE (repeatable)")
	rootCmd.Flags().Bool("tolerate-memcheck", false, "succeed even if the memory check fails")
	rootCmd.Flags().String("script", "", "driver script, relative to the source root (default \"driver.star\")")
	rootCmd.Flags().String("archive-logs", "", "pack the CTest logs into this .tar.xz (or .tar.br) file after the run")
	rootCmd.Flags().Bool("no-progress", false, "don't show a spinner while a stage runs")
}

// Execute runs the CLI and exits with status 1 on failure
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if !eris.Is(err, errReported) {
		cobra.CheckErr(err)
	}
	os.Exit(1)
}
