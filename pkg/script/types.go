package script

import (
	"go.starlark.net/starlark"

	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

// Option is declared by the script through option()
type Option struct {
	DefaultValue starlark.String
	Help         string
}

// Default returns the option's default value
func (o Option) Default() string {
	return o.DefaultValue.GoString()
}

// Settings contains the pipeline adjustments collected while executing the script
type Settings struct {
	Generator string
	Defines   []driver.Define
	// Env holds every variable set through setenv(), prepend_path() or load_vcvars().
	Env map[string]string
	// TolerateMemcheck is nil unless the script called tolerate_memcheck().
	TolerateMemcheck *bool
	Options          map[string]Option
}

// Apply merges the settings into opts. Values already present in opts take precedence over the
// script's generator and tolerance choices; defines and env are appended.
func (s *Settings) Apply(opts *driver.Options) {
	if opts.Generator == "" {
		opts.Generator = s.Generator
	}

	defines := make([]driver.Define, 0, len(s.Defines)+len(opts.Defines))
	defines = append(defines, s.Defines...)
	opts.Defines = append(defines, opts.Defines...)

	if len(s.Env) > 0 {
		env := make(map[string]string, len(s.Env)+len(opts.Env))
		for k, v := range s.Env {
			env[k] = v
		}
		for k, v := range opts.Env {
			env[k] = v
		}
		opts.Env = env
	}

	if s.TolerateMemcheck != nil && !opts.TolerateMemcheckFailure {
		opts.TolerateMemcheckFailure = *s.TolerateMemcheck
	}
}
