package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

// DefaultFilename is looked up in the source root when no script is configured
const DefaultFilename = "driver.star"

type scriptCtx struct {
	ctx          context.Context
	optionValues map[string]string
	yamlCache    map[string]interface{}
	filepath     string
	projectRoot  string
	settings     *Settings
	initPhase    bool
}

func getCtx(thread *starlark.Thread) *scriptCtx {
	return thread.Local("scriptCtx").(*scriptCtx)
}

// Exists reports whether filename exists. Errors other than a missing file are returned.
func Exists(filename string) (bool, error) {
	_, err := os.Stat(filename)
	if err == nil {
		return true, nil
	}
	if eris.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, eris.Wrapf(err, "failed to check %s", filename)
}

// Run executes the script at filename and returns the collected settings. optionValues provides
// the values returned by option(); undeclared values are reported as errors.
func Run(ctx context.Context, filename, projectRoot string, optionValues map[string]string) (*Settings, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	filename, err = filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	if optionValues == nil {
		optionValues = map[string]string{}
	}

	settings := &Settings{
		Env:     make(map[string]string),
		Options: make(map[string]Option),
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(thread *starlark.Thread, msg string) {
			driver.Logger(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	threadCtx := scriptCtx{
		ctx:          ctx,
		filepath:     filename,
		projectRoot:  projectRoot,
		optionValues: optionValues,
		yamlCache:    make(map[string]interface{}),
		settings:     settings,
		initPhase:    true,
	}
	thread.SetLocal("scriptCtx", &threadCtx)

	script, err := os.ReadFile(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read file")
	}

	displayName := displayPath(&threadCtx, filename)
	globals, err := starlark.ExecFile(thread, displayName, script, builtins())
	if err != nil {
		var evalError *starlark.EvalError
		if errors.As(err, &evalError) {
			return nil, eris.Errorf("failed to execute %s:\n%s", displayName, evalError.Backtrace())
		}
		return nil, eris.Wrapf(err, "failed to execute %s", displayName)
	}

	// conditionals are only allowed inside functions which is why the bulk of the work usually
	// happens in configure()
	if configure, ok := globals["configure"]; ok {
		configureFunc, ok := configure.(starlark.Callable)
		if !ok {
			return nil, eris.Errorf("%s did declare a configure value but it's not a function", displayName)
		}

		threadCtx.initPhase = false
		_, err = starlark.Call(thread, configureFunc, starlark.Tuple{}, nil)
		if err != nil {
			var evalError *starlark.EvalError
			if errors.As(err, &evalError) {
				return nil, eris.New(evalError.Backtrace())
			}
			return nil, eris.Wrapf(err, "failed configure call in %s", displayName)
		}
	}

	for name := range optionValues {
		if _, ok := settings.Options[name]; !ok {
			return nil, eris.Errorf("%s does not declare the option %s", displayName, name)
		}
	}

	return settings, nil
}
