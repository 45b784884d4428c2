package script

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
)

// normalizePath resolves each element against the previous result. The first element is relative
// to the script's directory; "//" marks a path relative to the source root.
func normalizePath(ctx *scriptCtx, elems ...string) string {
	result := filepath.Dir(ctx.filepath)

	for _, elem := range elems {
		switch {
		case strings.HasPrefix(elem, "//"):
			result = filepath.Join(ctx.projectRoot, filepath.FromSlash(elem[2:]))
		case filepath.IsAbs(elem):
			result = elem
		case strings.HasPrefix(elem, "/"):
			// rooted but without a volume on Windows
			result = filepath.Join(filepath.VolumeName(result), elem)
		default:
			result = filepath.Join(result, elem)
		}
	}

	return filepath.Clean(result)
}

// displayPath shortens paths inside the source root to the "//" notation used by scripts
func displayPath(ctx *scriptCtx, path string) string {
	rel, err := filepath.Rel(ctx.projectRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return "//" + filepath.ToSlash(rel)
}

// report logs msg with the script position of the calling builtin
func report(thread *starlark.Thread, evt *zerolog.Event, msg string) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	name := displayPath(ctx, ctx.filepath)

	evt.Str("script", name).Msgf("%s:%d:%d: %s", name, pos.Line, pos.Col, msg)
}

func envKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}

// lookupEnv returns the value set by the script or the inherited one
func (ctx *scriptCtx) lookupEnv(key string) string {
	for name, value := range ctx.settings.Env {
		if envKey(name) == envKey(key) {
			return value
		}
	}

	return os.Getenv(key)
}
