package driver

import (
	"github.com/rotisserie/eris"
)

const (
	GeneratorUnix  = "Unix Makefiles"
	GeneratorNMake = "NMake Makefiles"
)

// platforms that expose a POSIX environment and ship make
var posixPlatforms = map[string]bool{
	"aix":       true,
	"android":   true,
	"darwin":    true,
	"dragonfly": true,
	"freebsd":   true,
	"hurd":      true,
	"illumos":   true,
	"ios":       true,
	"linux":     true,
	"netbsd":    true,
	"openbsd":   true,
	"solaris":   true,
}

// SelectGenerator returns the CMake generator for the given GOOS value
func SelectGenerator(goos string) (string, error) {
	if goos == "windows" {
		return GeneratorNMake, nil
	}

	if posixPlatforms[goos] {
		return GeneratorUnix, nil
	}

	return "", eris.Wrapf(ErrUnsupportedPlatform, "platform %s", goos)
}
