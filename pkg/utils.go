package pkg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

var projectMatcher = regexp.MustCompile(`(?im)^\s*project\s*\(`)

// FindSourceRoot searches start and its parents for the top-level CMakeLists.txt, i.e. the first
// one that declares a project().
func FindSourceRoot(start string) (string, error) {
	path, err := filepath.Abs(start)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", start)
	}

	for {
		listPath := filepath.Join(path, "CMakeLists.txt")
		content, err := os.ReadFile(listPath)
		if err == nil {
			if projectMatcher.Match(content) {
				return path, nil
			}
		} else if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "Failed to check %s", listPath)
		}

		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	return "", eris.Errorf("No CMakeLists.txt with a project() declaration found above %s", start)
}

func PrintTask(w io.Writer, msg string) {
	colorstring.Fprintf(w, "[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(w io.Writer, msg string) {
	colorstring.Fprintf(w, "[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(w io.Writer, msg string) {
	colorstring.Fprintf(w, "[red][bold]  ->[reset] %s\n", msg)
}

// FormatDuration renders d with a precision that fits build steps
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	seconds := int(d.Seconds())
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}
