package driver

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Runner executes a single command inside dir and returns its combined output
type Runner interface {
	Run(ctx context.Context, dir string, env []string, args []string) (string, error)
}

// ShellRunner runs commands through the mvdan.cc/sh interpreter
type ShellRunner struct {
	// ExecHandler replaces the handler used to spawn programs. Defaults to interp.DefaultExecHandler.
	ExecHandler interp.ExecHandlerFunc
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// buildCallExpr turns an argument list into a shell call. Arguments are never re-parsed so
// spaces and shell metacharacters survive unchanged.
func buildCallExpr(args []string) *syntax.CallExpr {
	cmd := new(syntax.CallExpr)
	cmd.Args = make([]*syntax.Word, len(args))

	for a, arg := range args {
		var wordPart syntax.WordPart

		if arg == "" || strings.ContainsAny(arg, " \t\n$'\"\\*?[]#~&;|<>(){}`") {
			node := new(syntax.SglQuoted)
			node.Value = arg

			wordPart = node
		} else {
			node := new(syntax.Lit)
			node.Value = arg

			wordPart = node
		}

		cmd.Args[a] = new(syntax.Word)
		cmd.Args[a].Parts = []syntax.WordPart{wordPart}
	}

	return cmd
}

// Run implements Runner
func (r *ShellRunner) Run(ctx context.Context, dir string, env []string, args []string) (string, error) {
	if len(args) == 0 {
		return "", eris.New("empty command")
	}

	execHandler := r.ExecHandler
	if execHandler == nil {
		execHandler = defaultExecHandler
	}

	// stdout and stderr share one buffer which os/exec detects and feeds from a single pipe
	output := new(bytes.Buffer)
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(append(os.Environ(), env...)...)),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, output, output),
		interp.Params("-e"),
	)
	if err != nil {
		return "", eris.Wrap(err, "failed to initialize runner")
	}

	Logger(ctx).Debug().
		Str("dir", dir).
		Strs("args", args).
		Bool("command", true).
		Msg(strings.Join(args, " "))

	err = runner.Run(ctx, buildCallExpr(args))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output.String(), eris.Wrapf(ctxErr, "%s was interrupted", args[0])
		}

		if status, ok := interp.IsExitStatus(err); ok {
			return output.String(), eris.Errorf("%s exited with status %d", args[0], status)
		}
		return output.String(), eris.Wrapf(err, "failed to run %s", args[0])
	}

	return output.String(), nil
}
