package script

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

const vsWhere = `C:\Program Files (x86)\Microsoft Visual Studio\Installer\vswhere.exe`

// envMarker separates vcvarsall's own output from the environment dump
const envMarker = "--- cbuild environment ---"

// vcvarsRunner executes vswhere and vcvarsall.bat
var vcvarsRunner driver.Runner = &driver.ShellRunner{}

// loadVcvars imports the environment of the latest Visual Studio installation. NMake and cl.exe
// only work inside that environment. Returns False on other platforms.
func loadVcvars(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	arch := "amd64"
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0, &arch); err != nil {
		return nil, err
	}

	if runtime.GOOS != "windows" {
		return starlark.False, nil
	}

	ctx := getCtx(thread)
	vars, err := captureVcvars(ctx, arch)
	if err != nil {
		return nil, eris.Wrap(err, fn.Name())
	}

	for name, value := range vars {
		if ctx.lookupEnv(name) != value {
			ctx.settings.Env[name] = value
		}
	}

	driver.Logger(ctx.ctx).Debug().Int("vars", len(vars)).Msgf("Loaded the MSVC environment for %s", arch)
	return starlark.True, nil
}

func captureVcvars(ctx *scriptCtx, arch string) (map[string]string, error) {
	dir := filepath.Dir(ctx.filepath)
	env := make([]string, 0, len(ctx.settings.Env))
	for name, value := range ctx.settings.Env {
		env = append(env, name+"="+value)
	}

	output, err := vcvarsRunner.Run(ctx.ctx, dir, env, []string{vsWhere, "-property", "installationPath", "-latest"})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to run %s", vsWhere)
	}

	vsPath := strings.TrimSpace(output)
	if vsPath == "" {
		return nil, eris.New("no Visual Studio installation found")
	}

	vcvarsall := filepath.Join(vsPath, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	if _, err = os.Stat(vcvarsall); err != nil {
		return nil, eris.Wrapf(err, "could not find %s", vcvarsall)
	}

	tmpDir, err := os.MkdirTemp("", "cbuild-vcvars")
	if err != nil {
		return nil, eris.Wrap(err, "could not create a temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	helper := filepath.Join(tmpDir, "vcvars.bat")
	err = os.WriteFile(helper, []byte("@echo off\r\ncall \""+vcvarsall+"\" %1 || exit /b 1\r\necho "+envMarker+"\r\nset\r\n"), 0600)
	if err != nil {
		return nil, eris.Wrap(err, "failed to write the helper script")
	}

	output, err = vcvarsRunner.Run(ctx.ctx, dir, env, []string{"cmd", "/C", helper, arch})
	if err != nil {
		return nil, eris.Wrapf(err, "vcvarsall.bat failed:\n%s", output)
	}

	return parseEnvDump(output)
}

// parseEnvDump reads the NAME=VALUE lines that follow envMarker
func parseEnvDump(output string) (map[string]string, error) {
	pos := strings.Index(output, envMarker)
	if pos < 0 {
		return nil, eris.Errorf("environment dump is missing from the output:\n%s", output)
	}

	vars := make(map[string]string)
	for _, line := range strings.Split(output[pos+len(envMarker):], "\n") {
		line = strings.TrimRight(line, "\r")
		eq := strings.Index(line, "=")
		if eq < 1 {
			continue
		}

		vars[line[:eq]] = line[eq+1:]
	}

	return vars, nil
}
