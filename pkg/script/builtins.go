package script

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"

	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

type builtinFunc func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// unary wraps builtins which take exactly one string argument
func unary(impl func(thread *starlark.Thread, ctx *scriptCtx, arg string) (starlark.Value, error)) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var arg string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &arg); err != nil {
			return nil, err
		}

		value, err := impl(thread, getCtx(thread), arg)
		if err != nil {
			return nil, eris.Wrap(err, fn.Name())
		}
		return value, nil
	}
}

func resolvePath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, eris.Errorf("%s: unexpected keyword arguments", fn.Name())
	}
	if len(args) == 0 {
		return nil, eris.Errorf("%s: expected at least one path", fn.Name())
	}

	parts := make([]string, 0, len(args))
	for _, arg := range args {
		part, ok := starlark.AsString(arg)
		if !ok {
			return nil, eris.Errorf("%s: got %s, want string", fn.Name(), arg.Type())
		}
		parts = append(parts, part)
	}

	return starlark.String(normalizePath(getCtx(thread), parts...)), nil
}

var starInfo = unary(func(thread *starlark.Thread, ctx *scriptCtx, msg string) (starlark.Value, error) {
	report(thread, driver.Logger(ctx.ctx).Info(), msg)
	return starlark.None, nil
})

var starWarn = unary(func(thread *starlark.Thread, ctx *scriptCtx, msg string) (starlark.Value, error) {
	report(thread, driver.Logger(ctx.ctx).Warn(), msg)
	return starlark.None, nil
})

func starError(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}

	return nil, eris.New(msg)
}

var getenv = unary(func(thread *starlark.Thread, ctx *scriptCtx, key string) (starlark.Value, error) {
	return starlark.String(ctx.lookupEnv(key)), nil
})

var starIsdir = unary(func(thread *starlark.Thread, ctx *scriptCtx, path string) (starlark.Value, error) {
	info, err := os.Stat(normalizePath(ctx, path))
	return starlark.Bool(err == nil && info.IsDir()), nil
})

var starIsfile = unary(func(thread *starlark.Thread, ctx *scriptCtx, path string) (starlark.Value, error) {
	info, err := os.Stat(normalizePath(ctx, path))
	return starlark.Bool(err == nil && info.Mode().IsRegular()), nil
})

var prependPath = unary(func(thread *starlark.Thread, ctx *scriptCtx, dir string) (starlark.Value, error) {
	value := normalizePath(ctx, dir)
	if current := ctx.lookupEnv("PATH"); current != "" {
		value += string(os.PathListSeparator) + current
	}

	ctx.settings.Env["PATH"] = value
	return starlark.String(value), nil
})

var starGenerator = unary(func(thread *starlark.Thread, ctx *scriptCtx, name string) (starlark.Value, error) {
	if name == "" {
		return nil, eris.New("the generator name can't be empty")
	}

	ctx.settings.Generator = name
	return starlark.None, nil
})

func option(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, help string
	var defaultValue starlark.String

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if !ctx.initPhase {
		return nil, eris.Errorf("%s: options have to be declared in the global scope", fn.Name())
	}
	if _, dup := ctx.settings.Options[name]; dup {
		return nil, eris.Errorf("%s: %s was already declared", fn.Name(), name)
	}

	ctx.settings.Options[name] = Option{DefaultValue: defaultValue, Help: help}
	if value, passed := ctx.optionValues[name]; passed {
		return starlark.String(value), nil
	}
	return defaultValue, nil
}

func setenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, value string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &key, &value); err != nil {
		return nil, err
	}
	if key == "" || strings.Contains(key, "=") {
		return nil, eris.Errorf("%s: invalid variable name %q", fn.Name(), key)
	}

	getCtx(thread).settings.Env[key] = value
	return starlark.None, nil
}

func readYaml(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var file, key string
	var fallback starlark.Value = starlark.None

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &file, &key, &fallback)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	doc, err := ctx.loadYaml(normalizePath(ctx, file))
	if err != nil {
		return nil, eris.Wrap(err, fn.Name())
	}

	node := doc
	for _, part := range strings.Split(key, ".") {
		switch current := node.(type) {
		case map[string]interface{}:
			node = current[part]
		case map[interface{}]interface{}:
			node = current[part]
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(current) {
				return fallback, nil
			}
			node = current[idx]
		case nil:
			return fallback, nil
		default:
			return nil, eris.Errorf("%s: %s is a scalar and has no key %s", fn.Name(), key, part)
		}
	}

	switch value := node.(type) {
	case nil:
		return fallback, nil
	case string:
		return starlark.String(value), nil
	case bool:
		return starlark.Bool(value), nil
	case int:
		return starlark.MakeInt(value), nil
	case float64:
		return starlark.Float(value), nil
	default:
		return nil, eris.Errorf("%s: %s is not a scalar value", fn.Name(), key)
	}
}

func (ctx *scriptCtx) loadYaml(path string) (interface{}, error) {
	if doc, cached := ctx.yamlCache[path]; cached {
		return doc, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	var doc interface{}
	if err = yaml.Unmarshal(content, &doc); err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	ctx.yamlCache[path] = doc
	return doc, nil
}

// starDefine adds a CMake cache entry. Booleans become ON/OFF entries of type BOOL; PATH and
// FILEPATH values always use forward slashes since CMake treats backslashes as escapes.
func starDefine(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, cacheType string
	var value starlark.Value

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "value", &value, "type?", &cacheType)
	if err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, "=:") {
		return nil, eris.Errorf("%s: invalid cache entry name %q", fn.Name(), name)
	}

	def := driver.Define{Name: name, Type: strings.ToUpper(cacheType)}
	switch value := value.(type) {
	case starlark.String:
		def.Value = value.GoString()
	case starlark.Bool:
		def.Value = "OFF"
		if value {
			def.Value = "ON"
		}
		if def.Type == "" {
			def.Type = "BOOL"
		}
	case starlark.Int:
		def.Value = value.String()
	default:
		return nil, eris.Errorf("%s: %s can't be a %s", fn.Name(), name, value.Type())
	}

	if def.Type == "PATH" || def.Type == "FILEPATH" {
		def.Value = strings.ReplaceAll(def.Value, "\\", "/")
	}

	settings := getCtx(thread).settings
	settings.Defines = append(settings.Defines, def)
	return starlark.None, nil
}

func starTolerateMemcheck(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	tolerate := true
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0, &tolerate); err != nil {
		return nil, err
	}

	getCtx(thread).settings.TolerateMemcheck = &tolerate
	return starlark.None, nil
}

func builtins() starlark.StringDict {
	impls := map[string]builtinFunc{
		"define":            starDefine,
		"error":             starError,
		"generator":         starGenerator,
		"getenv":            getenv,
		"info":              starInfo,
		"isdir":             starIsdir,
		"isfile":            starIsfile,
		"load_vcvars":       loadVcvars,
		"option":            option,
		"prepend_path":      prependPath,
		"read_yaml":         readYaml,
		"resolve_path":      resolvePath,
		"setenv":            setenv,
		"tolerate_memcheck": starTolerateMemcheck,
		"warn":              starWarn,
	}

	dict := starlark.StringDict{
		"OS":   starlark.String(runtime.GOOS),
		"ARCH": starlark.String(runtime.GOARCH),
	}
	for name, impl := range impls {
		dict[name] = starlark.NewBuiltin(name, impl)
	}

	return dict
}
