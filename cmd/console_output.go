package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var levelColors = map[string]string{
	"panic": "[red][bold]",
	"fatal": "[red][bold]",
	"error": "[red]",
	"warn":  "[yellow]",
	"info":  "[green]",
	"debug": "[blue]",
	"trace": "[dark_gray]",
}

// ConsoleWriter renders zerolog's JSON events as colored, human readable lines
type ConsoleWriter struct {
	out  io.Writer
	lock sync.Mutex
}

func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

func (w *ConsoleWriter) Write(p []byte) (int, error) {
	var evt map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(p))
	decoder.UseNumber()
	if err := decoder.Decode(&evt); err != nil {
		return 0, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	line := render(evt, os.Getenv("CBUILD_DEBUG") != "")

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, err := colorstring.Fprint(w.out, line); err != nil {
		return 0, err
	}

	// zerolog treats short writes as errors
	return len(p), nil
}

func render(evt map[string]interface{}, verbose bool) string {
	level, _ := evt[zerolog.LevelFieldName].(string)
	color, ok := levelColors[level]
	if !ok {
		color = "[default]"
	}

	var line strings.Builder
	line.WriteString(color)

	if stage, ok := evt["stage"]; ok {
		fmt.Fprintf(&line, "%v: ", stage)
	}
	if level == "error" || level == "fatal" {
		line.WriteString("Error: ")
	}

	msg, _ := evt[zerolog.MessageFieldName].(string)
	if path, ok := evt["path"].(string); ok {
		msg = strings.ReplaceAll(msg, path, relativeToWd(path))
	}
	line.WriteString(msg)

	if details, ok := evt[zerolog.ErrorFieldName]; ok {
		fmt.Fprintf(&line, "\n%v", details)
	}

	if verbose {
		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Fprintf(&line, "\n  %s: %+v", name, evt[name])
		}
	}

	line.WriteString("[reset]\n")
	return line.String()
}

func relativeToWd(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}

	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, os.Getenv("CBUILD_DEBUG") != "")
	}
}
